package users

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"docflow-backend/internal/access"
	"docflow-backend/internal/documents"
	"docflow-backend/internal/shared/apperr"
	"docflow-backend/internal/shared/auth"
)

const goodPassword = "Password@123"

type recordingLister struct {
	got documents.ListFilter
	err error
}

func (l *recordingLister) List(ctx context.Context, f documents.ListFilter) (documents.ListResult, error) {
	l.got = f
	if l.err != nil {
		return documents.ListResult{}, l.err
	}
	return documents.ListResult{Fields: f.Select, Page: 1, Limit: 20}, nil
}

type failingRepo struct {
	*MemoryRepo
}

func (failingRepo) FindByEmail(context.Context, string) (*User, error) {
	return nil, errors.New("connection reset")
}

func newTestService(t *testing.T, admins ...string) (*Service, *auth.Signer, *recordingLister) {
	t.Helper()
	signer, err := auth.NewSigner("test-secret", time.Hour, "dev")
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	lister := &recordingLister{}
	svc := NewService(NewMemoryRepo(), signer, lister, admins)
	svc.BcryptCost = bcrypt.MinCost
	return svc, signer, lister
}

func signup(t *testing.T, svc *Service, email string) SignupResult {
	t.Helper()
	res, err := svc.Signup(context.Background(), SignupInput{FullName: "jane  doe", Email: email, Password: goodPassword})
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	return res
}

func TestSignupHashesPasswordAndNormalizes(t *testing.T) {
	svc, _, _ := newTestService(t)
	res := signup(t, svc, "  Jane@Example.COM ")
	if res.Role != access.RoleEditor {
		t.Fatalf("expected editor role, got %s", res.Role)
	}

	user, err := svc.Repo.FindByEmail(context.Background(), "jane@example.com")
	if err != nil || user == nil {
		t.Fatalf("FindByEmail: %v %v", user, err)
	}
	if user.FullName != "Jane Doe" {
		t.Fatalf("expected cleaned name, got %q", user.FullName)
	}
	if user.PasswordHash == goodPassword {
		t.Fatalf("password stored in clear")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(goodPassword)); err != nil {
		t.Fatalf("hash mismatch: %v", err)
	}
}

func TestSignupGrantsAdminToConfiguredEmail(t *testing.T) {
	svc, _, _ := newTestService(t, "Root@Example.com")
	if res := signup(t, svc, "root@example.com"); res.Role != access.RoleAdmin {
		t.Fatalf("expected admin, got %s", res.Role)
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	svc, _, _ := newTestService(t)
	signup(t, svc, "jane@example.com")
	_, err := svc.Signup(context.Background(), SignupInput{FullName: "Jane Again", Email: "JANE@example.com", Password: goodPassword})
	if !errors.Is(err, apperr.Conflict(msgEmailTaken)) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestSignupValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	tests := []struct {
		name string
		in   SignupInput
	}{
		{name: "short name", in: SignupInput{FullName: "Jo", Email: "a@example.com", Password: goodPassword}},
		{name: "digits in name", in: SignupInput{FullName: "John123", Email: "a@example.com", Password: goodPassword}},
		{name: "bad email", in: SignupInput{FullName: "John Doe", Email: "bad-email", Password: goodPassword}},
		{name: "short password", in: SignupInput{FullName: "John Doe", Email: "a@example.com", Password: "Pa@1"}},
		{name: "no uppercase", in: SignupInput{FullName: "John Doe", Email: "a@example.com", Password: "password@123"}},
		{name: "no special", in: SignupInput{FullName: "John Doe", Email: "a@example.com", Password: "Password123"}},
		{name: "unsupported char", in: SignupInput{FullName: "John Doe", Email: "a@example.com", Password: "Password@123#"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Signup(context.Background(), tt.in)
			if apperr.KindOf(err) != apperr.KindValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestLoginIssuesVerifiableToken(t *testing.T) {
	svc, signer, _ := newTestService(t)
	res := signup(t, svc, "jane@example.com")

	token, err := svc.Login(context.Background(), "Jane@Example.com", goodPassword)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	claims, err := signer.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Sub != res.ID || claims.Email != "jane@example.com" || claims.Role != "editor" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	user, _ := svc.Repo.FindByID(context.Background(), res.ID)
	if user.LastLoginAt == nil {
		t.Fatalf("expected last login to be recorded")
	}
}

func TestLoginFailures(t *testing.T) {
	svc, _, _ := newTestService(t)
	signup(t, svc, "jane@example.com")

	if _, err := svc.Login(context.Background(), "nobody@example.com", goodPassword); !errors.Is(err, apperr.NotFound(msgUserNotFound)) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.Login(context.Background(), "jane@example.com", "Wrong@1234"); !errors.Is(err, apperr.Unauthorized(msgInvalidCredentials)) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}

	svc.Repo = failingRepo{MemoryRepo: NewMemoryRepo()}
	_, err := svc.Login(context.Background(), "jane@example.com", goodPassword)
	if apperr.KindOf(err) != apperr.KindInternal || apperr.MessageOf(err) != failureMessages["login"] {
		t.Fatalf("expected internal error, got %v", err)
	}
}

func TestProfileAndDetails(t *testing.T) {
	svc, _, _ := newTestService(t, "root@example.com")
	editor := signup(t, svc, "jane@example.com")
	admin := signup(t, svc, "root@example.com")

	prof, err := svc.Profile(context.Background(), editor.ID)
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if prof.Email != "jane@example.com" || prof.Role != access.RoleEditor {
		t.Fatalf("unexpected profile %+v", prof)
	}
	if _, err := svc.Profile(context.Background(), admin.ID); err != nil {
		t.Fatalf("admin profile: %v", err)
	}
	if _, err := svc.Details(context.Background(), admin.ID); !errors.Is(err, apperr.NotFound(msgUserNotFound)) {
		t.Fatalf("expected admin accounts hidden, got %v", err)
	}
	if _, err := svc.Details(context.Background(), editor.ID); err != nil {
		t.Fatalf("Details: %v", err)
	}
}

func TestUpdateRole(t *testing.T) {
	svc, _, _ := newTestService(t, "root@example.com")
	editor := signup(t, svc, "jane@example.com")
	admin := signup(t, svc, "root@example.com")

	msg, err := svc.UpdateRole(context.Background(), editor.ID, access.RoleViewer)
	if err != nil {
		t.Fatalf("UpdateRole: %v", err)
	}
	if msg != "New user role: viewer" {
		t.Fatalf("unexpected message %q", msg)
	}
	if _, err := svc.UpdateRole(context.Background(), editor.ID, access.RoleAdmin); !errors.Is(err, apperr.Validation(msgAdminRole)) {
		t.Fatalf("expected admin grant rejected, got %v", err)
	}
	if _, err := svc.UpdateRole(context.Background(), admin.ID, access.RoleViewer); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected admin target rejected, got %v", err)
	}
}

func TestSoftDelete(t *testing.T) {
	svc, _, _ := newTestService(t)
	editor := signup(t, svc, "jane@example.com")

	if _, err := svc.SoftDelete(context.Background(), editor.ID); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	if _, err := svc.SoftDelete(context.Background(), editor.ID); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected second delete to miss, got %v", err)
	}
	if _, err := svc.Login(context.Background(), "jane@example.com", goodPassword); !errors.Is(err, apperr.NotFound(msgUserNotFound)) {
		t.Fatalf("expected deleted account unable to log in, got %v", err)
	}
	if _, err := svc.Signup(context.Background(), SignupInput{FullName: "Jane Doe", Email: "jane@example.com", Password: goodPassword}); !errors.Is(err, apperr.Conflict("")) {
		t.Fatalf("expected email to stay reserved, got %v", err)
	}
}

func TestDocumentsScopesToCaller(t *testing.T) {
	svc, _, lister := newTestService(t)

	if _, err := svc.Documents(context.Background(), "user-1", false, 0, 0); err != nil {
		t.Fatalf("Documents: %v", err)
	}
	if lister.got.UserID != "user-1" {
		t.Fatalf("expected listing scoped to caller, got %+v", lister.got)
	}
	for _, f := range lister.got.Select {
		if f == "filePath" {
			t.Fatalf("file path must be opt-in")
		}
	}

	if _, err := svc.Documents(context.Background(), "user-1", true, 2, 5); err != nil {
		t.Fatalf("Documents: %v", err)
	}
	last := lister.got.Select[len(lister.got.Select)-1]
	if last != "filePath" || lister.got.Page != 2 || lister.got.Limit != 5 {
		t.Fatalf("unexpected filter %+v", lister.got)
	}
	if len(documents.UserDocumentFields) == len(lister.got.Select) {
		t.Fatalf("shared projection was mutated")
	}
}

func TestListExcludesAdminsAndFilters(t *testing.T) {
	svc, _, _ := newTestService(t, "root@example.com")
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.Now = func() time.Time {
		now = now.Add(time.Minute)
		return now
	}
	ctx := context.Background()
	signup(t, svc, "root@example.com")
	alice, err := svc.Signup(ctx, SignupInput{FullName: "Alice Smith", Email: "alice@example.com", Password: goodPassword})
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	bob, err := svc.Signup(ctx, SignupInput{FullName: "Bob Stone", Email: "bob@corp.io", Password: goodPassword})
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if _, err := svc.UpdateRole(ctx, bob.ID, access.RoleViewer); err != nil {
		t.Fatalf("UpdateRole: %v", err)
	}

	res, err := svc.List(ctx, ListFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if res.TotalCount != 2 || len(res.Items) != 2 || res.Page != 1 || res.TotalPages != 1 {
		t.Fatalf("unexpected page %+v", res)
	}
	if res.Items[0].ID != bob.ID || res.Items[1].ID != alice.ID {
		t.Fatalf("expected newest first, got %s then %s", res.Items[0].ID, res.Items[1].ID)
	}
	if res.Items[0].PasswordHash != "" || !res.Items[0].CreatedAt.IsZero() {
		t.Fatalf("expected default projection only, got %+v", res.Items[0])
	}

	res, _ = svc.List(ctx, ListFilter{Roles: []access.Role{access.RoleViewer}})
	if res.TotalCount != 1 || res.Items[0].ID != bob.ID {
		t.Fatalf("role filter: %+v", res)
	}
	res, _ = svc.List(ctx, ListFilter{FullName: "SMITH", SortOrder: "ASC"})
	if res.TotalCount != 1 || res.Items[0].ID != alice.ID {
		t.Fatalf("name filter: %+v", res)
	}
	res, _ = svc.List(ctx, ListFilter{Email: "corp", Select: []string{"email", "createdAt"}})
	if res.TotalCount != 1 || res.Items[0].Email != "bob@corp.io" || res.Items[0].ID != "" || res.Items[0].CreatedAt.IsZero() {
		t.Fatalf("email filter with projection: %+v", res)
	}
}

func TestListScopesAndPages(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	ids := make([]string, 0, 3)
	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		ids = append(ids, signup(t, svc, email).ID)
	}
	if _, err := svc.SoftDelete(ctx, ids[0]); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}

	active, _ := svc.List(ctx, ListFilter{})
	deleted, _ := svc.List(ctx, ListFilter{Scope: "deleted"})
	all, _ := svc.List(ctx, ListFilter{Scope: "all", Limit: 2, Page: 2})
	if active.TotalCount != 2 || deleted.TotalCount != 1 || deleted.Items[0].ID != ids[0] {
		t.Fatalf("scope counts active=%d deleted=%+v", active.TotalCount, deleted)
	}
	if all.TotalCount != 3 || len(all.Items) != 1 || all.TotalPages != 2 {
		t.Fatalf("unexpected second page %+v", all)
	}
}

func TestListRejectsBadInput(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.List(context.Background(), ListFilter{Select: []string{"passwordHash"}})
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation for unknown field, got %v", err)
	}
	_, err = svc.List(context.Background(), ListFilter{Roles: []access.Role{access.RoleAdmin}})
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation for admin filter, got %v", err)
	}
}
