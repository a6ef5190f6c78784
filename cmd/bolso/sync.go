package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/bolsoapp/bolso/internal/domain"
	"github.com/bolsoapp/bolso/internal/syncengine"
)

const sessionFile = "session.json"

// session is the persisted link to a remote server: where it is, which
// device this installation is, and the current token pair.
type session struct {
	ServerURL    string `json:"serverUrl"`
	Email        string `json:"email"`
	DeviceID     string `json:"deviceId"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func loadSession() (*session, error) {
	data, err := os.ReadFile(filepath.Join(dataDir, sessionFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("not logged in, run: bolso sync login")
		}
		return nil, err
	}
	var s session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("corrupt session file: %w", err)
	}
	return &s, nil
}

func (s *session) save() error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dataDir, sessionFile), data, 0o600)
}

// client builds a sync client from the stored session.
func (s *session) client() *syncengine.Client {
	return syncengine.NewClient(syncengine.ClientConfig{
		BaseURL:  s.ServerURL,
		DeviceID: s.DeviceID,
		Tokens: syncengine.TokenPair{
			AccessToken:  s.AccessToken,
			RefreshToken: s.RefreshToken,
		},
	})
}

// persistTokens writes refreshed tokens back so the next invocation does
// not have to refresh again.
func (s *session) persistTokens(c *syncengine.Client) {
	tokens := c.Tokens()
	if tokens.AccessToken == s.AccessToken && tokens.RefreshToken == s.RefreshToken {
		return
	}
	s.AccessToken = tokens.AccessToken
	s.RefreshToken = tokens.RefreshToken
	if err := s.save(); err != nil {
		fmt.Fprintln(os.Stderr, "warning: failed to persist refreshed tokens:", err)
	}
}

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronize with a remote server",
	}
	cmd.AddCommand(
		newSyncLoginCmd(),
		newSyncNowCmd(),
		newSyncStatusCmd(),
		newSyncResolveCmd(),
		newSyncLogoutCmd(),
	)
	return cmd
}

func newSyncLoginCmd() *cobra.Command {
	var server, email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate against a remote server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := os.MkdirAll(dataDir, 0o700); err != nil {
				return err
			}

			if password == "" {
				fmt.Print("Password: ")
				line, err := bufio.NewReader(os.Stdin).ReadString('\n')
				if err != nil {
					return err
				}
				password = strings.TrimSpace(line)
			}

			// Reuse the device identity across logins so the server keeps
			// one record per installation.
			deviceID := uuid.NewString()
			if existing, err := loadSession(); err == nil && existing.DeviceID != "" {
				deviceID = existing.DeviceID
			}
			hostname, _ := os.Hostname()

			tokens, err := login(cmd.Context(), server, email, password, deviceID, hostname)
			if err != nil {
				return err
			}

			s := &session{
				ServerURL:    strings.TrimRight(server, "/"),
				Email:        email,
				DeviceID:     deviceID,
				AccessToken:  tokens.AccessToken,
				RefreshToken: tokens.RefreshToken,
			}
			if err := s.save(); err != nil {
				return err
			}

			fmt.Printf("Logged in as %s, device %s\n", email, deviceID)
			return nil
		},
	}

	cmd.Flags().StringVar(&server, "server", "http://localhost:8080", "Server base URL")
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Password; prompted when omitted")
	cmd.MarkFlagRequired("email")
	return cmd
}

func login(ctx context.Context, server, email, password, deviceID, deviceName string) (*syncengine.TokenPair, error) {
	payload, err := json.Marshal(map[string]string{
		"email":      email,
		"password":   password,
		"deviceId":   deviceID,
		"deviceName": deviceName,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(server, "/")+"/auth/login", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cannot reach server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, errors.New("invalid credentials")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("login failed with status %d", resp.StatusCode)
	}

	var tokens syncengine.TokenPair
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return nil, fmt.Errorf("decode login response: %w", err)
	}
	return &tokens, nil
}

func newSyncNowCmd() *cobra.Command {
	var policy string

	cmd := &cobra.Command{
		Use:   "now",
		Short: "Run one sync cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			s, err := loadSession()
			if err != nil {
				return err
			}
			resolution, err := domain.ParseConflictResolution(policy)
			if err != nil {
				return fmt.Errorf("unknown policy %q, want server-wins, client-wins, last-write-wins or manual", policy)
			}

			client := s.client()
			defer s.persistTokens(client)

			engine := syncengine.New(syncengine.Config{
				Ledger:    app.ledger,
				Transport: client,
				Policy:    resolution,
				Bus:       app.bus,
				Logger:    app.logger,
			})

			syncErr := engine.SyncNow(cmd.Context())
			status := engine.Status(cmd.Context())

			switch {
			case syncErr == nil:
				fmt.Println("Sync completed")
			case errors.Is(syncErr, domain.ErrConflictPending):
				fmt.Println("Sync finished with unresolved conflicts:")
				for _, c := range engine.PendingConflicts() {
					fmt.Printf("  %s %s (local v%d, server v%d)\n", c.Type, c.ItemID, c.LocalVersion, c.ServerVersion)
				}
				fmt.Println("Resolve with: bolso sync resolve <item-id> <server-wins|client-wins|last-write-wins>")
			default:
				return syncErr
			}

			fmt.Printf("Pending items: %d\n", status.PendingItems)
			return nil
		},
	}

	cmd.Flags().StringVar(&policy, "policy", "last-write-wins", "Conflict policy: server-wins, client-wins, last-write-wins or manual")
	return cmd
}

func newSyncStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show local and remote sync state",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			pending, err := app.ledger.PendingCount(cmd.Context())
			if err != nil {
				return err
			}
			checkpoint, err := app.ledger.Checkpoint(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Printf("Dirty items:     %d\n", pending)
			if checkpoint.IsZero() {
				fmt.Println("Last checkpoint: never")
			} else {
				fmt.Printf("Last checkpoint: %s\n", checkpoint.Format(time.RFC3339))
			}

			s, err := loadSession()
			if err != nil {
				fmt.Println("Server:          not logged in")
				return nil
			}

			client := s.client()
			defer s.persistTokens(client)

			remote, err := client.Status(cmd.Context())
			if err != nil {
				fmt.Printf("Server:          unreachable (%v)\n", err)
				return nil
			}

			fmt.Printf("Server:          %s\n", s.ServerURL)
			if remote.LastSync != nil {
				fmt.Printf("Server last sync: %s\n", remote.LastSync.Format(time.RFC3339))
			} else {
				fmt.Println("Server last sync: never")
			}
			return nil
		},
	}
}

// newSyncResolveCmd reruns a cycle under the manual policy to repopulate
// the parked set, then settles the named item with an explicit choice.
func newSyncResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <item-id> <choice>",
		Short: "Settle one conflicted item",
		Long:  `Settle one conflicted item with server-wins, client-wins or last-write-wins, then finish the sync cycle.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			s, err := loadSession()
			if err != nil {
				return err
			}
			choice, err := domain.ParseConflictResolution(args[1])
			if err != nil || choice == domain.Manual {
				return fmt.Errorf("choice must be server-wins, client-wins or last-write-wins")
			}

			client := s.client()
			defer s.persistTokens(client)

			engine := syncengine.New(syncengine.Config{
				Ledger:    app.ledger,
				Transport: client,
				Policy:    domain.Manual,
				Bus:       app.bus,
				Logger:    app.logger,
			})

			// Conflicts are parked in memory, so replay the cycle first.
			if err := engine.SyncNow(cmd.Context()); err != nil && !errors.Is(err, domain.ErrConflictPending) {
				return err
			}

			if err := engine.Resolve(cmd.Context(), args[0], choice); err != nil {
				return err
			}

			fmt.Printf("Resolved %s with %s\n", args[0], choice)

			// Finish the cycle so the resolution and any remaining clean
			// items reach the server.
			if err := engine.SyncNow(cmd.Context()); err != nil && !errors.Is(err, domain.ErrConflictPending) {
				return err
			}
			return nil
		},
	}
}

func newSyncLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored server session",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := filepath.Join(dataDir, sessionFile)
			if err := os.Remove(path); err != nil {
				if os.IsNotExist(err) {
					fmt.Println("Not logged in")
					return nil
				}
				return err
			}
			fmt.Println("Logged out")
			return nil
		},
	}
}
