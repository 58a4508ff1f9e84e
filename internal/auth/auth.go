package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/numberpro/internal/crypto"
	"github.com/example/numberpro/internal/db"
)

// Store handles dashboard users, their sessions, and their stored inventory
// credentials (encrypted at rest).
type Store struct {
	sc   *securecookie.SecureCookie
	db   *db.DB
	aead *crypto.AEAD
}

type ctxKey string

const userIDKey ctxKey = "userID"

const cookieName = "npctl_session"

func NewStore(d *db.DB, hashKey, blockKey []byte, aead *crypto.AEAD) *Store {
	sc := securecookie.New(hashKey, blockKey)
	sc.MaxAge(int((14 * 24 * time.Hour).Seconds()))
	return &Store{sc: sc, db: d, aead: aead}
}

func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	return string(b), err
}

func CheckPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

func (s *Store) CreateUser(ctx context.Context, username, password string) (string, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	if err := s.db.Exec(ctx, `INSERT INTO users(id, username, password_bcrypt) VALUES ($1,$2,$3)`, id, username, hash); err != nil {
		return "", err
	}
	// credentials row exists from day one so the dashboard form is an update
	if err := s.db.Exec(ctx, `INSERT INTO credentials (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, id); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) Authenticate(ctx context.Context, username, password string) (string, error) {
	var id, hash string
	err := s.db.QueryRow(ctx, `SELECT id, password_bcrypt FROM users WHERE username=$1`, username).Scan(&id, &hash)
	if err != nil {
		return "", db.WrapNotFound(err)
	}
	if !CheckPassword(hash, password) {
		return "", errors.New("invalid credentials")
	}
	return id, nil
}

// InventoryCredentials are the NumberPro server credentials a dashboard user
// has stored. Values are sealed with AES-GCM before hitting the database.
type InventoryCredentials struct {
	Username string
	Password string
}

func (c InventoryCredentials) Complete() bool {
	return c.Username != "" && c.Password != ""
}

func (s *Store) GetInventoryCredentials(ctx context.Context, userID string) (InventoryCredentials, error) {
	var c InventoryCredentials
	err := s.db.QueryRow(ctx, `SELECT numberpro_username, numberpro_password FROM credentials WHERE user_id=$1`, userID).
		Scan(&c.Username, &c.Password)
	if err != nil {
		return InventoryCredentials{}, db.WrapNotFound(err)
	}
	if c.Username != "" {
		if v, err := s.aead.DecryptString(c.Username); err == nil {
			c.Username = v
		}
	}
	if c.Password != "" {
		if v, err := s.aead.DecryptString(c.Password); err == nil {
			c.Password = v
		}
	}
	return c, nil
}

func (s *Store) UpdateInventoryCredentials(ctx context.Context, userID string, c InventoryCredentials) error {
	var err error
	if c.Username != "" {
		if c.Username, err = s.aead.EncryptToString(c.Username); err != nil {
			return err
		}
	}
	if c.Password != "" {
		if c.Password, err = s.aead.EncryptToString(c.Password); err != nil {
			return err
		}
	}
	return s.db.Exec(ctx, `
UPDATE credentials SET numberpro_username=$2, numberpro_password=$3, updated_at=$4 WHERE user_id=$1`,
		userID, c.Username, c.Password, time.Now().UTC())
}

type Session struct {
	UserID string
}

func (s *Store) SetSession(w http.ResponseWriter, r *http.Request, userID string) error {
	encoded, err := s.sc.Encode(cookieName, map[string]string{"uid": userID})
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    encoded,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
		MaxAge:   int((14 * 24 * time.Hour).Seconds()),
	})
	return nil
}

func (s *Store) ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

func (s *Store) GetSession(r *http.Request) (Session, bool) {
	c, err := r.Cookie(cookieName)
	if err != nil {
		return Session{}, false
	}
	val := map[string]string{}
	if err := s.sc.Decode(cookieName, c.Value, &val); err != nil {
		return Session{}, false
	}
	uid := val["uid"]
	if uid == "" {
		return Session{}, false
	}
	return Session{UserID: uid}, true
}

func (s *Store) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.GetSession(r)
		if !ok {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey, sess.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	uid, ok := ctx.Value(userIDKey).(string)
	return uid, ok
}
