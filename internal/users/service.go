package users

import (
	"context"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"docflow-backend/internal/access"
	"docflow-backend/internal/documents"
	"docflow-backend/internal/shared/apperr"
	"docflow-backend/internal/shared/query"
	"docflow-backend/internal/shared/telemetry"
)

const (
	msgEmailTaken         = "Email already in use"
	msgUserNotFound       = "User not found"
	msgInvalidCredentials = "Invalid credentials"
	msgAdminRole          = "Cannot assign admin role"

	maxNameLength     = 100
	minNameLength     = 3
	minPasswordLength = 8
	maxPasswordLength = 30
	passwordSpecials  = "@$!%*?&"
)

var failureMessages = map[string]string{
	"signup":    "Failed to create user",
	"login":     "Something went wrong while logging in",
	"profile":   "Something went wrong while fetching user",
	"details":   "Something went wrong while fetching user",
	"role":      "Something went wrong while updating user",
	"delete":    "Something went wrong while deleting the user",
	"documents": "Failed to fetch documents",
	"list":      "Failed to fetch users",
}

var namePattern = regexp.MustCompile(`^[A-Za-z\s]+$`)

// TokenIssuer signs access tokens for an identity.
type TokenIssuer interface {
	Sign(sub, email, role string) (string, error)
}

// DocumentLister lists documents on behalf of a user.
type DocumentLister interface {
	List(ctx context.Context, f documents.ListFilter) (documents.ListResult, error)
}

// Service contains account business logic.
type Service struct {
	Repo       Repo
	Tokens     TokenIssuer
	Docs       DocumentLister
	BcryptCost int
	Now        func() time.Time

	// DefaultRole is granted to accounts not listed as admins.
	DefaultRole access.Role

	admins map[string]struct{}
}

// NewService constructs a Service. Accounts registered with an email in
// adminEmails are granted the admin role.
func NewService(repo Repo, tokens TokenIssuer, docs DocumentLister, adminEmails []string) *Service {
	admins := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		if e = normalizeEmail(e); e != "" {
			admins[e] = struct{}{}
		}
	}
	return &Service{
		Repo:        repo,
		Tokens:      tokens,
		Docs:        docs,
		BcryptCost:  bcrypt.DefaultCost,
		Now:         time.Now,
		admins:      admins,
		DefaultRole: access.RoleEditor,
	}
}

// Signup registers a new account with a hashed password.
func (s *Service) Signup(ctx context.Context, in SignupInput) (SignupResult, error) {
	var out SignupResult
	email := normalizeEmail(in.Email)
	fields := map[string]any{"email": email}
	err := s.run(ctx, "signup", fields, func() error {
		name := cleanName(in.FullName)
		if err := validateSignup(name, email, in.Password); err != nil {
			return err
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost())
		if err != nil {
			return err
		}
		role := s.DefaultRole
		if _, ok := s.admins[email]; ok {
			role = access.RoleAdmin
		}
		now := s.now()
		user := User{
			ID:           uuid.NewString(),
			Email:        email,
			FullName:     name,
			PasswordHash: string(hash),
			Role:         role,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		id, err := s.Repo.Create(ctx, user)
		if err != nil {
			return err
		}
		fields["user_id"] = id
		fields["role"] = string(role)
		out = SignupResult{ID: id, Role: role}
		return nil
	})
	return out, err
}

// Login verifies credentials and returns a signed access token.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	var token string
	email = normalizeEmail(email)
	fields := map[string]any{"email": email}
	err := s.run(ctx, "login", fields, func() error {
		user, err := s.Repo.FindByEmail(ctx, email)
		if err != nil {
			return err
		}
		if user == nil {
			return apperr.NotFound(msgUserNotFound)
		}
		fields["user_id"] = user.ID
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
			return apperr.Unauthorized(msgInvalidCredentials)
		}
		token, err = s.Tokens.Sign(user.ID, user.Email, string(user.Role))
		if err != nil {
			return err
		}
		if err := s.Repo.TouchLogin(ctx, user.ID, s.now()); err != nil {
			telemetry.Warn("user.last_login_failed", map[string]any{"user_id": user.ID, "error": err})
		}
		return nil
	})
	return token, err
}

// Profile returns the caller's own account.
func (s *Service) Profile(ctx context.Context, userID string) (Profile, error) {
	var out Profile
	err := s.run(ctx, "profile", map[string]any{"user_id": userID}, func() error {
		user, err := s.Repo.FindByID(ctx, userID)
		if err != nil {
			return err
		}
		if user == nil {
			return apperr.NotFound(msgUserNotFound)
		}
		out = toProfile(*user)
		return nil
	})
	return out, err
}

// Details returns a non-admin account for an administrator.
func (s *Service) Details(ctx context.Context, id string) (Profile, error) {
	var out Profile
	err := s.run(ctx, "details", map[string]any{"user_id": id}, func() error {
		user, err := s.Repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if user == nil || user.Role == access.RoleAdmin {
			return apperr.NotFound(msgUserNotFound)
		}
		out = toProfile(*user)
		return nil
	})
	return out, err
}

// UpdateRole changes the role of a non-admin account. Admin can not be granted.
func (s *Service) UpdateRole(ctx context.Context, id string, role access.Role) (string, error) {
	var msg string
	err := s.run(ctx, "role", map[string]any{"user_id": id, "role": string(role)}, func() error {
		if role == access.RoleAdmin {
			return apperr.Validation(msgAdminRole)
		}
		if _, ok := access.ParseRole(string(role)); !ok {
			return apperr.Validation("Invalid role")
		}
		n, err := s.Repo.UpdateRole(ctx, id, role, s.now())
		if err != nil {
			return err
		}
		if n == 0 {
			return apperr.NotFound(fmt.Sprintf("User with id %s not found or cannot update admin user", id))
		}
		msg = fmt.Sprintf("New user role: %s", role)
		return nil
	})
	return msg, err
}

// SoftDelete marks a non-admin account deleted.
func (s *Service) SoftDelete(ctx context.Context, id string) (string, error) {
	var msg string
	err := s.run(ctx, "delete", map[string]any{"user_id": id}, func() error {
		n, err := s.Repo.SoftDelete(ctx, id, s.now())
		if err != nil {
			return err
		}
		if n == 0 {
			return apperr.NotFound(fmt.Sprintf("User with ID %s not found, already deleted, or is an admin", id))
		}
		msg = fmt.Sprintf("User with id %s has been deleted successfully", id)
		return nil
	})
	return msg, err
}

// List returns one page of non-admin accounts matching f for an administrator.
func (s *Service) List(ctx context.Context, f ListFilter) (ListResult, error) {
	var out ListResult
	fields := map[string]any{"scope": string(f.Scope)}
	err := s.run(ctx, "list", fields, func() error {
		for _, role := range f.Roles {
			if role == access.RoleAdmin {
				return apperr.Validation("Admin accounts cannot be listed")
			}
		}
		selected, err := query.Projection(f.Select, AllFields, DefaultFields)
		if err != nil {
			return apperr.Validation(err.Error())
		}
		page := query.NewPage(f.Page, f.Limit)
		if f.Scope == "" {
			f.Scope = query.ScopeActive
		}
		items, total, err := s.Repo.List(ctx, f, selected, page)
		if err != nil {
			return err
		}
		fields["count"] = len(items)
		fields["page"] = page.Page
		out = ListResult{
			Items:      items,
			Fields:     selected,
			TotalCount: total,
			TotalPages: page.TotalPages(total),
			Page:       page.Page,
			Limit:      page.Limit,
		}
		return nil
	})
	return out, err
}

// Documents lists the caller's own active documents, newest first.
func (s *Service) Documents(ctx context.Context, userID string, withFilePath bool, page, limit int) (documents.ListResult, error) {
	var out documents.ListResult
	err := s.run(ctx, "documents", map[string]any{"user_id": userID}, func() error {
		fields := append([]string(nil), documents.UserDocumentFields...)
		if withFilePath {
			fields = append(fields, "filePath")
		}
		res, err := s.Docs.List(ctx, documents.ListFilter{
			UserID: userID,
			Select: fields,
			Page:   page,
			Limit:  limit,
		})
		if err != nil {
			return err
		}
		out = res
		return nil
	})
	return out, err
}

func (s *Service) run(ctx context.Context, op string, fields map[string]any, fn func() error) error {
	err := fn()
	logFields := telemetry.Fields(ctx, fields, 1)
	if err == nil {
		telemetry.Info("user."+op, logFields)
		return nil
	}
	err = apperr.Translate(err, failureMessages[op])
	logFields["error"] = err
	if apperr.KindOf(err) == apperr.KindInternal {
		telemetry.Error("user."+op+".failed", logFields)
	} else {
		telemetry.Warn("user."+op+".failed", logFields)
	}
	return err
}

func (s *Service) cost() int {
	if s.BcryptCost < bcrypt.MinCost {
		return bcrypt.DefaultCost
	}
	return s.BcryptCost
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func toProfile(u User) Profile {
	return Profile{ID: u.ID, Email: u.Email, FullName: u.FullName, Role: u.Role}
}

func normalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// cleanName collapses runs of whitespace and title-cases each word.
func cleanName(raw string) string {
	words := strings.Fields(raw)
	for i, w := range words {
		runes := []rune(strings.ToLower(w))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

func validateSignup(name, email, password string) error {
	switch {
	case len(name) < minNameLength:
		return apperr.Validation("Full name must be valid")
	case len(name) > maxNameLength:
		return apperr.Validation("Full name must not exceed 100 characters")
	case !namePattern.MatchString(name):
		return apperr.Validation("Name can only contain alphabetical characters.")
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return apperr.Validation("This email is not acceptable. Please use a valid email address.")
	}
	return validatePassword(password)
}

// validatePassword requires 8 to 30 characters drawn from letters, digits and
// passwordSpecials, with at least one uppercase letter, digit and special.
func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return apperr.Validation("Minimum 8 characters required")
	}
	if len(password) > maxPasswordLength {
		return apperr.Validation("Maximum 30 characters allowed")
	}
	var upper, digit, special bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		case r >= 'a' && r <= 'z':
		default:
			return apperr.Validation("Password contains unsupported characters")
		}
	}
	if !upper || !digit || !special {
		return apperr.Validation("Password must contain at least one uppercase letter, one number, and one special character")
	}
	return nil
}
