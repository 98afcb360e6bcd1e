package cli

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"

	_ "modernc.org/sqlite"

	"github.com/sejonglabs/sejong/internal/accounts"
	"github.com/sejonglabs/sejong/internal/api"
	"github.com/sejonglabs/sejong/internal/common"
	"github.com/sejonglabs/sejong/internal/config"
	"github.com/sejonglabs/sejong/internal/cryptox"
	"github.com/sejonglabs/sejong/internal/filex"
	"github.com/sejonglabs/sejong/internal/logging"
	"github.com/sejonglabs/sejong/internal/services"
	"github.com/sejonglabs/sejong/internal/session"
	"github.com/sejonglabs/sejong/internal/transport"
)

// fallback when no vault passphrase is configured
const defaultPassphrase = "sejong-local-vault"

const saltSize = 16

// App owns the wired client stack and the interactive loop state.
type App struct {
	config  *config.Config
	auth    services.AuthService
	session *session.Manager
	log     logging.Logger
	reader  *bufio.Reader
	closeFn func() error
}

// NewApp wires the full client stack from configuration: logger, sqlite
// account store, at-rest token cipher, refreshing transport, API client and
// the auth façade.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	log := logging.NewDefault(c.LogLevel)

	dbPath, err := filex.EnsureParentDir(c.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("preparing database directory: %w", err)
	}
	db, err := accounts.OpenDatabase(ctx, dbPath)
	if err != nil {
		return nil, fmt.Errorf("initializing account database: %w", err)
	}

	salt, err := loadOrCreateSalt(dbPath + ".salt")
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	passphrase := c.VaultPassphrase
	if passphrase == "" {
		passphrase = defaultPassphrase
	}
	key := cryptox.DeriveKey([]byte(passphrase), salt)
	cipher, err := cryptox.NewCipher(key)
	common.WipeByteArray(key)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing token cipher: %w", err)
	}

	repo := accounts.NewSQLiteRepository(db, cipher)
	sess := session.NewManager()

	tr := transport.New(repo, c.BaseURL, log)
	apiClient := api.New(c.BaseURL, &http.Client{Transport: tr, Timeout: c.RequestTimeout})
	auth := services.NewAuthService(apiClient, repo, sess, tr, log)

	return &App{
		config:  c,
		auth:    auth,
		session: sess,
		log:     log,
		reader:  bufio.NewReader(os.Stdin),
		closeFn: db.Close,
	}, nil
}

// loadOrCreateSalt reads the key-derivation salt stored next to the account
// database, creating a fresh one on first run. Losing the salt makes all
// sealed tokens unreadable, so it lives with the data it protects.
func loadOrCreateSalt(path string) ([]byte, error) {
	salt, err := os.ReadFile(path)
	if err == nil && len(salt) == saltSize {
		return salt, nil
	}
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading key salt: %w", err)
	}

	salt = common.GenerateRandByteArray(saltSize)
	if err := os.WriteFile(path, salt, 0o600); err != nil {
		return nil, fmt.Errorf("writing key salt: %w", err)
	}
	return salt, nil
}

// Run resolves the persisted session and enters the REPL. Blocks until the
// user exits.
func (a *App) Run(ctx context.Context) error {
	defer func() { _ = a.closeFn() }()

	if err := a.auth.Resolve(ctx); err != nil {
		return fmt.Errorf("resolving stored session: %w", err)
	}
	a.Root(ctx)
	return nil
}

func (a *App) isSignedIn() bool {
	return a.session.Current().Phase == session.PhaseSignedIn
}
