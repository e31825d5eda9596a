package session

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"support-chat-backend/internal/config"
	"support-chat-backend/internal/inference"
)

// Source names where a session was found.
type Source string

const (
	SourceNone     Source = "none"
	SourceDatabase Source = "database"
	SourceRedis    Source = "redis"
	SourceMemory   Source = "memory"
	SourceFile     Source = "file"
	SourceService  Source = "service"
)

type Options struct {
	// Database and Redis are optional. The first one configured receives sign-ins;
	// otherwise they go to Memory.
	Database      AuthStore
	Redis         AuthStore
	Memory        *MemoryStore
	// File and Service are shared by every chat session, so they are only
	// consulted when SingleUser is set.
	File          *FileStore
	Service       oauth2.TokenSource
	ServiceUserID string
	SingleUser    bool
	TTL           time.Duration
}

// Provider resolves the signed-in user for the chat session carried in ctx.
type Provider struct {
	stores      []namedStore
	memory      *MemoryStore
	file        *FileStore
	service     oauth2.TokenSource
	serviceUser string
	ttl         time.Duration
	log         zerolog.Logger
}

type namedStore struct {
	source Source
	store  AuthStore
}

func NewProvider(opts Options, log zerolog.Logger) *Provider {
	if opts.Memory == nil {
		opts.Memory = NewMemoryStore(0)
	}
	var stores []namedStore
	if opts.Database != nil {
		stores = append(stores, namedStore{SourceDatabase, opts.Database})
	}
	if opts.Redis != nil {
		stores = append(stores, namedStore{SourceRedis, opts.Redis})
	}
	stores = append(stores, namedStore{SourceMemory, opts.Memory})
	if !opts.SingleUser {
		opts.File, opts.Service = nil, nil
	}
	return &Provider{
		stores:      stores,
		memory:      opts.Memory,
		file:        opts.File,
		service:     opts.Service,
		serviceUser: opts.ServiceUserID,
		ttl:         opts.TTL,
		log:         log,
	}
}

// ServiceTokenSource builds a client-credentials token source from cfg, or nil when
// no service account is configured.
func ServiceTokenSource(cfg config.Config) oauth2.TokenSource {
	if !cfg.ServiceAccountEnabled() {
		return nil
	}
	cc := &clientcredentials.Config{
		ClientID:     cfg.ServiceClientID,
		ClientSecret: cfg.ServiceClientSecret,
		TokenURL:     cfg.ServiceTokenURL,
		Scopes:       cfg.ServiceScopes,
	}
	return cc.TokenSource(context.Background())
}

// CurrentSession implements inference.SessionProvider. It returns nil, nil when no
// valid session exists anywhere.
func (p *Provider) CurrentSession(ctx context.Context) (*inference.Session, error) {
	auth, _, err := p.Lookup(ctx)
	if err != nil || auth == nil {
		return nil, err
	}
	return &inference.Session{UserID: auth.UserID, AccessToken: auth.AccessToken}, nil
}

// Lookup finds a valid session in order: database, redis, memory, then in single-user
// mode the developer file and service account. Expired records are skipped.
func (p *Provider) Lookup(ctx context.Context) (*Auth, Source, error) {
	if id := IDFromContext(ctx); id != "" {
		for _, ns := range p.stores {
			a, err := ns.store.GetAuth(ctx, id)
			if err != nil {
				return nil, SourceNone, err
			}
			if a.Valid() {
				return a, ns.source, nil
			}
		}
	}

	if p.file != nil {
		a, err := p.file.Read()
		if err != nil {
			return nil, SourceNone, err
		}
		if a.Valid() {
			return a, SourceFile, nil
		}
		if a != nil {
			p.log.Debug().Str("user_id", a.UserID).Msg("developer session expired")
		}
	}

	if p.service != nil {
		tok, err := p.service.Token()
		if err != nil {
			return nil, SourceNone, errors.Wrap(err, "service token")
		}
		a := &Auth{UserID: p.serviceUser, AccessToken: tok.AccessToken, ExpiresAt: tok.Expiry}
		if a.Valid() {
			return a, SourceService, nil
		}
	}

	return nil, SourceNone, nil
}

// SignIn binds userID and token to the chat session. A zero expiresIn falls back to
// the configured TTL; with no TTL the session does not expire.
func (p *Provider) SignIn(ctx context.Context, sessionID, userID, token string, expiresIn time.Duration) (*Auth, error) {
	if userID == "" || token == "" {
		return nil, errors.New("user id and access token are required")
	}
	if expiresIn <= 0 {
		expiresIn = p.ttl
	}
	auth := Auth{SessionID: sessionID, UserID: userID, AccessToken: token}
	if expiresIn > 0 {
		auth.ExpiresAt = time.Now().Add(expiresIn)
	}

	primary := p.stores[0]
	if err := primary.store.SaveAuth(ctx, auth); err != nil {
		return nil, err
	}
	if primary.source == SourceMemory && p.file != nil {
		if err := p.file.Write(&auth); err != nil {
			p.log.Warn().Err(err).Msg("failed to persist developer session")
		}
	}
	p.log.Info().Str("session_id", sessionID).Str("user_id", userID).Str("store", string(primary.source)).Msg("signed in")
	return &auth, nil
}

// SignOut removes the session's auth from every store.
func (p *Provider) SignOut(ctx context.Context, sessionID string) error {
	for _, ns := range p.stores {
		if err := ns.store.DeleteAuth(ctx, sessionID); err != nil {
			return err
		}
	}
	if p.file != nil {
		if err := p.file.Clear(); err != nil {
			return err
		}
	}
	p.log.Info().Str("session_id", sessionID).Msg("signed out")
	return nil
}
