package workspace

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/openclaw/launcher/pkg/log"
)

const (
	configDirName    = "config"
	workspaceDirName = "workspace"
	configFileName   = "openclaw.json"
	identityFileName = "IDENTITY.md"
)

// Provisioner materialises per-instance directories under root and seeds
// them from an optional template directory.
type Provisioner struct {
	root        string // <dataDir>/instances
	templateDir string // optional; seeded into new workspaces
	logger      zerolog.Logger
}

// New creates a provisioner rooted at root.
func New(root, templateDir string) *Provisioner {
	return &Provisioner{
		root:        root,
		templateDir: templateDir,
		logger:      log.WithComponent("workspace"),
	}
}

// InstanceDir returns the directory owned by an instance.
func (p *Provisioner) InstanceDir(id string) string {
	return filepath.Join(p.root, id)
}

// ConfigDir returns the config directory bind-mounted as the container's
// application home.
func (p *Provisioner) ConfigDir(id string) string {
	return filepath.Join(p.root, id, configDirName)
}

// WorkspaceDir returns the workspace directory bind-mounted into the
// container.
func (p *Provisioner) WorkspaceDir(id string) string {
	return filepath.Join(p.root, id, workspaceDirName)
}

// Provision builds the on-disk state for an instance: directories, seeded
// template files, the runtime config carrying the gateway token, and the
// identity marker. Template seeding never overwrites and its failure does
// not fail the provision; config and identity are rewritten on every call.
func (p *Provisioner) Provision(id, pubkey, gatewayToken string, containerPort int) error {
	configDir := p.ConfigDir(id)
	workspaceDir := p.WorkspaceDir(id)

	for _, dir := range []string{configDir, workspaceDir} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create instance directory: %w", err)
		}
	}

	if p.templateDir != "" {
		if err := p.seedTemplates(workspaceDir); err != nil {
			p.logger.Warn().Err(err).Str("instance_id", id).Msg("template seeding incomplete")
		}
	}

	if err := p.writeConfig(configDir, gatewayToken, containerPort); err != nil {
		return err
	}
	return p.writeIdentity(workspaceDir, id, pubkey)
}

// seedTemplates copies each regular file from the template directory into
// the workspace, skipping any destination that already exists.
func (p *Provisioner) seedTemplates(workspaceDir string) error {
	entries, err := os.ReadDir(p.templateDir)
	if err != nil {
		return fmt.Errorf("read template directory: %w", err)
	}
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		dst := filepath.Join(workspaceDir, entry.Name())
		if _, err := os.Stat(dst); err == nil {
			continue
		}
		if err := copyFile(filepath.Join(p.templateDir, entry.Name()), dst); err != nil {
			return fmt.Errorf("seed %s: %w", entry.Name(), err)
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// gatewayConfig mirrors the structure the application reads from
// openclaw.json. The token is the only per-instance value.
type gatewayConfig struct {
	Agents struct {
		Defaults struct {
			Workspace              string `json:"workspace"`
			BootstrapMaxChars      int    `json:"bootstrapMaxChars"`
			BootstrapTotalMaxChars int    `json:"bootstrapTotalMaxChars"`
		} `json:"defaults"`
	} `json:"agents"`
	Gateway struct {
		Port int    `json:"port"`
		Mode string `json:"mode"`
		Bind string `json:"bind"`
		Auth struct {
			Mode  string `json:"mode"`
			Token string `json:"token"`
		} `json:"auth"`
		ControlUI struct {
			AllowInsecureAuth bool `json:"allowInsecureAuth"`
		} `json:"controlUi"`
	} `json:"gateway"`
}

func (p *Provisioner) writeConfig(configDir, gatewayToken string, containerPort int) error {
	var cfg gatewayConfig
	cfg.Agents.Defaults.Workspace = "/home/node/.openclaw/workspace"
	cfg.Agents.Defaults.BootstrapMaxChars = 30000
	cfg.Agents.Defaults.BootstrapTotalMaxChars = 80000
	cfg.Gateway.Port = containerPort
	cfg.Gateway.Mode = "local"
	cfg.Gateway.Bind = "lan"
	cfg.Gateway.Auth.Mode = "token"
	cfg.Gateway.Auth.Token = gatewayToken
	cfg.Gateway.ControlUI.AllowInsecureAuth = true

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode runtime config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, configFileName), append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write runtime config: %w", err)
	}
	return nil
}

func (p *Provisioner) writeIdentity(workspaceDir, id, pubkey string) error {
	stamp := time.Now().UTC().Format("2006-01-02 15:04:05 UTC")
	content := fmt.Sprintf(
		"# Identity\n\n- **Wallet:** `%s`\n- **Instance:** `%s`\n- **Created:** %s\n",
		pubkey, id, stamp,
	)
	if err := os.WriteFile(filepath.Join(workspaceDir, identityFileName), []byte(content), 0o600); err != nil {
		return fmt.Errorf("write identity marker: %w", err)
	}
	return nil
}
