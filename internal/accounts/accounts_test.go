package accounts

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/jonboulle/clockwork"
	"golang.org/x/crypto/bcrypt"

	"github.com/socialconnect/backend/internal/docstore"
	"github.com/socialconnect/backend/internal/models"
	"github.com/socialconnect/backend/internal/repositories"
)

func newService(t *testing.T, opts ...Option) (*Service, *repositories.DocUserRepository) {
	t.Helper()
	docs := docstore.NewMemoryStore(clockwork.NewFakeClock())
	t.Cleanup(func() { _ = docs.Close() })
	repo := repositories.NewDocUserRepository(docs)
	opts = append([]Option{WithHashCost(bcrypt.MinCost), WithClock(clockwork.NewFakeClock())}, opts...)
	return NewService(repo, opts...), repo
}

func validSignUp() SignUpInput {
	return SignUpInput{
		Name:            "Ann",
		Place:           "Oslo",
		Gender:          "female",
		Email:           "Ann@Example.com",
		Password:        "secret1",
		ConfirmPassword: "secret1",
		Code:            "ann01",
	}
}

func TestSignUpValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SignUpInput)
		title  string
	}{
		{"missing field", func(in *SignUpInput) { in.Place = " " }, "Missing Information"},
		{"bad email", func(in *SignUpInput) { in.Email = "not-an-email" }, "Invalid Email"},
		{"short password", func(in *SignUpInput) { in.Password, in.ConfirmPassword = "123", "123" }, "Weak Password"},
		{"password over bcrypt limit", func(in *SignUpInput) {
			in.Password = strings.Repeat("a", 73)
			in.ConfirmPassword = in.Password
		}, "Weak Password"},
		{"mismatch", func(in *SignUpInput) { in.ConfirmPassword = "other12" }, "Password Mismatch"},
		{"short code", func(in *SignUpInput) { in.Code = "ab" }, "Invalid Code"},
		{"code with symbols", func(in *SignUpInput) { in.Code = "ab/cd" }, "Invalid Code"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newService(t)
			in := validSignUp()
			tt.mutate(&in)

			_, err := svc.SignUp(context.Background(), in)
			var alert *models.AlertError
			if !errors.As(err, &alert) {
				t.Fatalf("expected alert error, got %v", err)
			}
			if alert.Title != tt.title {
				t.Fatalf("expected alert %q, got %q", tt.title, alert.Title)
			}
		})
	}
}

func TestSignUpAndLogin(t *testing.T) {
	ctx := context.Background()
	svc, repo := newService(t)

	user, err := svc.SignUp(ctx, validSignUp())
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if user.Code != "ANN01" || user.Email != "ann@example.com" {
		t.Fatalf("expected normalised code and email, got %+v", user)
	}

	stored, err := repo.FindByCode(ctx, "ANN01")
	if err != nil || stored.ID != user.ID {
		t.Fatalf("expected user to be findable by code, got %+v (%v)", stored, err)
	}

	loggedIn, err := svc.Login(ctx, "ANN@example.com", "secret1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if loggedIn.ID != user.ID {
		t.Fatalf("expected %s, got %s", user.ID, loggedIn.ID)
	}

	if _, err := svc.Login(ctx, "ann@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Login(ctx, "nobody@example.com", "secret1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}

	if _, err := svc.SignUp(ctx, validSignUp()); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

// failingCreateStore fails the next user write.
type failingCreateStore struct {
	*repositories.DocUserRepository
	fail bool
}

func (f *failingCreateStore) Create(ctx context.Context, user models.User) error {
	if f.fail {
		f.fail = false
		return errors.New("boom")
	}
	return f.DocUserRepository.Create(ctx, user)
}

func TestSignUpCleansUpWhenUserWriteFails(t *testing.T) {
	ctx := context.Background()
	docs := docstore.NewMemoryStore(clockwork.NewFakeClock())
	t.Cleanup(func() { _ = docs.Close() })
	store := &failingCreateStore{DocUserRepository: repositories.NewDocUserRepository(docs), fail: true}
	svc := NewService(store, WithHashCost(bcrypt.MinCost), WithClock(clockwork.NewFakeClock()))

	if _, err := svc.SignUp(ctx, validSignUp()); err == nil {
		t.Fatal("expected the failed user write to surface")
	}
	if _, err := store.FindCredential(ctx, "ann@example.com"); !errors.Is(err, repositories.ErrNotFound) {
		t.Fatalf("expected credential to be removed, got %v", err)
	}

	user, err := svc.SignUp(ctx, validSignUp())
	if err != nil {
		t.Fatalf("retry signup: %v", err)
	}
	if user.Code != "ANN01" {
		t.Fatalf("expected the released code to be reusable, got %q", user.Code)
	}
	loggedIn, err := svc.Login(ctx, "ann@example.com", "secret1")
	if err != nil || loggedIn.ID != user.ID {
		t.Fatalf("expected login as %s, got %+v (%v)", user.ID, loggedIn, err)
	}
}

func TestSignUpRejectsTakenCode(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	if _, err := svc.SignUp(ctx, validSignUp()); err != nil {
		t.Fatalf("first signup: %v", err)
	}

	second := validSignUp()
	second.Email = "bob@example.com"
	second.Code = "ANN01"

	_, err := svc.SignUp(ctx, second)
	var alert *models.AlertError
	if !errors.As(err, &alert) || alert.Title != "Code Already Taken" {
		t.Fatalf("expected Code Already Taken alert, got %v", err)
	}

	// The failed signup must not leave a credential behind.
	second.Code = "BOB01"
	if _, err := svc.SignUp(ctx, second); err != nil {
		t.Fatalf("retry with a free code: %v", err)
	}
}

func TestUpdateProfileValidation(t *testing.T) {
	ctx := context.Background()
	var changed []string
	svc, _ := newService(t, WithChangeHook(func(id string) { changed = append(changed, id) }))

	user, err := svc.SignUp(ctx, validSignUp())
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	for _, in := range []ProfileInput{
		{Name: "", Place: "Oslo", Age: 20, Gender: "female"},
		{Name: "Ann", Place: "", Age: 20, Gender: "female"},
		{Name: "Ann", Place: "Oslo", Age: 0, Gender: "female"},
		{Name: "Ann", Place: "Oslo", Age: 121, Gender: "female"},
		{Name: "Ann", Place: "Oslo", Age: 20, Gender: ""},
	} {
		if _, err := svc.UpdateProfile(ctx, user.ID, in); err == nil {
			t.Fatalf("expected validation error for %+v", in)
		}
	}

	updated, err := svc.UpdateProfile(ctx, user.ID, ProfileInput{Name: "Anne", Place: "Bergen", Age: 120, Gender: "female"})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if updated.Name != "Anne" || updated.Age != 120 || updated.Code != "ANN01" {
		t.Fatalf("unexpected profile: %+v", updated)
	}
	if len(changed) != 1 || changed[0] != user.ID {
		t.Fatalf("expected change hook for %s, got %v", user.ID, changed)
	}
}

func TestRegenerateCodeReleasesPrevious(t *testing.T) {
	ctx := context.Background()
	svc, repo := newService(t)

	user, err := svc.SignUp(ctx, validSignUp())
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	code, err := svc.RegenerateCode(ctx, user.ID)
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if !regexp.MustCompile(`^[A-Z0-9]{6}$`).MatchString(code) {
		t.Fatalf("unexpected code format %q", code)
	}

	found, err := repo.FindByCode(ctx, code)
	if err != nil || found.ID != user.ID {
		t.Fatalf("expected new code to resolve to user, got %+v (%v)", found, err)
	}
	if err := repo.Reserve(ctx, "ANN01", "someone-else"); err != nil {
		t.Fatalf("expected previous code to be released, got %v", err)
	}
}

func TestDirectoryAndRandomUser(t *testing.T) {
	ctx := context.Background()
	svc, repo := newService(t)

	for _, u := range []models.User{
		{ID: "me", Name: "Me", Place: "Oslo", Gender: "male"},
		{ID: "a", Name: "Astrid", Place: "Tromso", Gender: "female"},
		{ID: "b", Name: "Bjorn", Place: "Oslo", Gender: "male"},
	} {
		if err := repo.Create(ctx, u); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}

	all, err := svc.Directory(ctx, "me", "", "")
	if err != nil || len(all) != 2 {
		t.Fatalf("expected two other users, got %d (%v)", len(all), err)
	}

	oslo, _ := svc.Directory(ctx, "me", "oslo", "")
	if len(oslo) != 1 || oslo[0].ID != "b" {
		t.Fatalf("expected place search to match Bjorn, got %+v", oslo)
	}

	women, _ := svc.Directory(ctx, "me", "", "female")
	if len(women) != 1 || women[0].ID != "a" {
		t.Fatalf("expected gender filter to match Astrid, got %+v", women)
	}

	for i := 0; i < 10; i++ {
		u, err := svc.RandomUser(ctx, "me")
		if err != nil {
			t.Fatalf("random user: %v", err)
		}
		if u.ID == "me" {
			t.Fatal("random user must never be the caller")
		}
	}

	lonely, _ := newService(t)
	if _, err := lonely.RandomUser(ctx, "me"); !errors.Is(err, ErrNoUsers) {
		t.Fatalf("expected ErrNoUsers, got %v", err)
	}
}
