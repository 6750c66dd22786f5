package auth

import "context"

// Session is the logged-in user of a request. SessKey guards form posts
// against cross-site submission and stays fixed for the token's lifetime.
type Session struct {
	UserID   string
	Username string
	Role     string
	SessKey  string
}

type ctxKey struct{}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

func SessionFromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(Session)
	return s, ok && s.UserID != ""
}

// SubjectFromContext is the user id, or "" for anonymous requests.
func SubjectFromContext(ctx context.Context) string {
	s, _ := SessionFromContext(ctx)
	return s.UserID
}
