package repositories

import (
	"context"
	"strings"

	"github.com/socialconnect/backend/internal/docstore"
	"github.com/socialconnect/backend/internal/models"
)

const (
	usersCollection       = "users"
	codesCollection       = "codes"
	credentialsCollection = "credentials"
)

// UserRepository defines the data access contract for users.
type UserRepository interface {
	Create(ctx context.Context, user models.User) error
	Get(ctx context.Context, id string) (models.User, error)
	FindByCode(ctx context.Context, code string) (models.User, error)
	Update(ctx context.Context, user models.User) error
	List(ctx context.Context) ([]models.User, error)
}

// CodeRepository reserves connect codes so no two users share one.
type CodeRepository interface {
	Reserve(ctx context.Context, code, userID string) error
	Release(ctx context.Context, code string) error
}

// CredentialRepository stores password hashes keyed by email.
type CredentialRepository interface {
	CreateCredential(ctx context.Context, cred models.Credential) error
	FindCredential(ctx context.Context, email string) (models.Credential, error)
	DeleteCredential(ctx context.Context, email string) error
}

// DocUserRepository keeps users, code reservations and credentials in the document store.
type DocUserRepository struct {
	store docstore.Store
}

// NewDocUserRepository constructs a user repository over store.
func NewDocUserRepository(store docstore.Store) *DocUserRepository {
	return &DocUserRepository{store: store}
}

// Create writes a new user document. It fails with ErrConflict if the id is taken.
func (r *DocUserRepository) Create(ctx context.Context, user models.User) error {
	data, err := encode(user)
	if err != nil {
		return err
	}
	return translate("create user", r.store.Create(ctx, docstore.Path(usersCollection, user.ID), data))
}

// Get fetches a user by id.
func (r *DocUserRepository) Get(ctx context.Context, id string) (models.User, error) {
	doc, err := r.store.Get(ctx, docstore.Path(usersCollection, id))
	if err != nil {
		return models.User{}, translate("get user", err)
	}
	return userFromDoc(doc)
}

// FindByCode returns the user currently holding code.
func (r *DocUserRepository) FindByCode(ctx context.Context, code string) (models.User, error) {
	docs, err := r.store.Query(ctx, docstore.Query{
		Collection: usersCollection,
		Filters:    []docstore.Filter{docstore.Eq("code", strings.ToUpper(code))},
		Limit:      1,
	})
	if err != nil {
		return models.User{}, translate("find user by code", err)
	}
	if len(docs) == 0 {
		return models.User{}, ErrNotFound
	}
	return userFromDoc(docs[0])
}

// Update merges the user's profile fields into the stored document.
func (r *DocUserRepository) Update(ctx context.Context, user models.User) error {
	if _, err := r.store.Get(ctx, docstore.Path(usersCollection, user.ID)); err != nil {
		return translate("update user", err)
	}
	data, err := encode(user)
	if err != nil {
		return err
	}
	return translate("update user", r.store.Set(ctx, docstore.Path(usersCollection, user.ID), data, true))
}

// List returns every user ordered by name.
func (r *DocUserRepository) List(ctx context.Context) ([]models.User, error) {
	docs, err := r.store.Query(ctx, docstore.Query{Collection: usersCollection, OrderBy: "name"})
	if err != nil {
		return nil, translate("list users", err)
	}
	return collect(docs, userFromDoc)
}

// Reserve claims code for userID. It fails with ErrConflict if someone holds it.
func (r *DocUserRepository) Reserve(ctx context.Context, code, userID string) error {
	err := r.store.Create(ctx, docstore.Path(codesCollection, strings.ToUpper(code)), map[string]any{
		"uid":       userID,
		"createdAt": docstore.ServerTimestamp,
	})
	return translate("reserve code", err)
}

// Release frees a previously reserved code.
func (r *DocUserRepository) Release(ctx context.Context, code string) error {
	if strings.TrimSpace(code) == "" {
		return nil
	}
	return translate("release code", r.store.Delete(ctx, docstore.Path(codesCollection, strings.ToUpper(code))))
}

// CreateCredential stores a password hash. It fails with ErrConflict if the email is registered.
func (r *DocUserRepository) CreateCredential(ctx context.Context, cred models.Credential) error {
	data, err := encode(cred)
	if err != nil {
		return err
	}
	return translate("create credential", r.store.Create(ctx, docstore.Path(credentialsCollection, credentialKey(cred.Email)), data))
}

// FindCredential loads the credential registered for email.
func (r *DocUserRepository) FindCredential(ctx context.Context, email string) (models.Credential, error) {
	doc, err := r.store.Get(ctx, docstore.Path(credentialsCollection, credentialKey(email)))
	if err != nil {
		return models.Credential{}, translate("find credential", err)
	}
	var cred models.Credential
	if err := decode(doc.Data, &cred); err != nil {
		return models.Credential{}, err
	}
	return cred, nil
}

// DeleteCredential removes the credential registered for email.
func (r *DocUserRepository) DeleteCredential(ctx context.Context, email string) error {
	return translate("delete credential", r.store.Delete(ctx, docstore.Path(credentialsCollection, credentialKey(email))))
}

func userFromDoc(doc docstore.Document) (models.User, error) {
	var user models.User
	if err := decode(doc.Data, &user); err != nil {
		return models.User{}, err
	}
	user.ID = doc.ID
	return user, nil
}

// credentialKey normalises an email into a path-safe document id.
func credentialKey(email string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(email)), "/", "%2F")
}

var (
	_ UserRepository       = (*DocUserRepository)(nil)
	_ CodeRepository       = (*DocUserRepository)(nil)
	_ CredentialRepository = (*DocUserRepository)(nil)
)
