package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/virga-tools/virga/internal/config"
	"github.com/virga-tools/virga/internal/core"
	"github.com/virga-tools/virga/internal/grpcapi"
	"github.com/virga-tools/virga/internal/lifecycle"
	"github.com/virga-tools/virga/internal/repository"
	"github.com/virga-tools/virga/internal/store"
)

// workspaceContext bundles the open resources a command needs.
type workspaceContext struct {
	engine       *core.Engine
	store        *store.Store
	repo         *repository.Repository
	orchestrator *lifecycle.Orchestrator
	client       *grpcapi.Client
}

// Close releases everything the context holds.
func (wc *workspaceContext) Close() {
	if wc.client != nil {
		wc.client.Close()
	}
	if wc.engine != nil {
		wc.engine.Close()
	}
}

// loadWorkspace opens the active workspace and wires the orchestrator on top
// of it. The vault passphrase is prompted once per invocation.
func loadWorkspace() (*workspaceContext, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if cfg.ActiveWorkspace == "" {
		return nil, fmt.Errorf("no active workspace; run 'virga workspace init' or 'virga workspace use <name>'")
	}

	passphrase, err := promptPassphrase("Vault passphrase: ")
	if err != nil {
		return nil, err
	}

	engine, err := core.OpenWorkspace(cfg.ActiveWorkspace, passphrase)
	if err != nil {
		return nil, fmt.Errorf("opening workspace: %w", err)
	}

	repo := repository.New(engine.MetadataDB, engine.Workspace.UUID)
	st, err := store.New(repo, engine.Logger)
	if err != nil {
		engine.Close()
		return nil, fmt.Errorf("loading session store: %w", err)
	}

	// The refresh client is best effort; a CLI mutation must succeed with
	// no view server running.
	var notifier lifecycle.Notifier = lifecycle.NoopNotifier{}
	client, err := grpcapi.Dial(cfg.ServerSocket, engine.Logger)
	if err == nil {
		notifier = client
	}

	orch := lifecycle.New(lifecycle.Options{
		Store:     st,
		Repo:      repo,
		Vault:     engine.Vault,
		Audit:     engine.AuditLogger,
		MetaDB:    engine.MetadataDB,
		Workspace: engine.Workspace,
		Notifier:  notifier,
		Operator:  operatorName(),
		Logger:    engine.Logger,
	})

	return &workspaceContext{
		engine:       engine,
		store:        st,
		repo:         repo,
		orchestrator: orch,
		client:       client,
	}, nil
}

func operatorName() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "local"
}

func promptPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	passBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	fmt.Fprintln(os.Stderr)
	return string(passBytes), nil
}

// confirmCascade prints the sessions a destructive operation would affect
// and asks for a y/N answer on stdin.
func confirmCascade(cr *core.ConfirmationRequired) bool {
	fmt.Printf("Deleting this %s affects %d session(s):\n", cr.Kind, len(cr.Affected))
	for _, s := range cr.Affected {
		fmt.Printf("  - %s (%s, %s)\n", s.Name, s.Type, s.Status)
	}
	fmt.Print("Proceed? [y/N]: ")

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

// findSession resolves a command argument to a session: exact id first, then
// unique id prefix, then exact name.
func findSession(st *store.Store, arg string) (core.Session, error) {
	if sess, err := st.GetSession(arg); err == nil {
		return sess, nil
	}

	var matches []core.Session
	for _, s := range st.Sessions() {
		if strings.HasPrefix(s.ID, arg) || s.Name == arg {
			matches = append(matches, s)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return core.Session{}, core.NewNotFoundError("session", arg)
	default:
		return core.Session{}, fmt.Errorf("ambiguous session %q: %d matches", arg, len(matches))
	}
}

// resolveProfileNameToID maps a profile name to its id, creating the profile
// when it does not exist yet. An empty name means "use the default".
func resolveProfileNameToID(wc *workspaceContext, name string) (string, error) {
	if name == "" {
		return "", nil
	}
	p, err := wc.repo.GetProfileByName(name)
	if err == nil {
		return p.ID, nil
	}
	if !core.IsNotFound(err) {
		return "", err
	}
	created, err := wc.orchestrator.CreateProfile(name)
	if err != nil {
		return "", err
	}
	return created.ID, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
