package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/basket/haxxor-bunny/internal/cdn"
	"github.com/basket/haxxor-bunny/internal/commands"
	"github.com/basket/haxxor-bunny/internal/config"
	"github.com/basket/haxxor-bunny/internal/discord"
	"github.com/basket/haxxor-bunny/internal/persistence"
	"github.com/basket/haxxor-bunny/internal/policy"
)

type deployOptions struct {
	global  bool
	guildID string
	dryRun  bool
}

func parseDeployArgs(args []string, defaultGuild string) (deployOptions, error) {
	fs := flag.NewFlagSet("deploy", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var opts deployOptions
	fs.BoolVar(&opts.global, "global", false, "deploy to every guild")
	fs.StringVar(&opts.guildID, "guild", "", "deploy to one guild")
	fs.BoolVar(&opts.dryRun, "dry-run", false, "print the payload only")
	if err := fs.Parse(args); err != nil {
		return opts, fmt.Errorf("usage: haxxor-bunny deploy [-global|-guild <id>] [-dry-run]: %w", err)
	}
	if fs.NArg() != 0 {
		return opts, errors.New("usage: haxxor-bunny deploy [-global|-guild <id>] [-dry-run]")
	}
	if opts.global && opts.guildID != "" {
		return opts, errors.New("deploy: -global and -guild are mutually exclusive")
	}
	if !opts.global && opts.guildID == "" {
		opts.guildID = defaultGuild
	}
	if !opts.global && opts.guildID == "" {
		return opts, errors.New("deploy: pass -global, -guild <id>, or set DISCORD_DEV_GUILD_ID")
	}
	return opts, nil
}

func descriptors() ([]discord.ApplicationCommand, error) {
	reg, err := commands.NewRegistry(commands.Deps{})
	if err != nil {
		return nil, err
	}
	return reg.Descriptors(), nil
}

func runCommandsCommand(w io.Writer, args []string) int {
	if len(args) != 0 {
		fmt.Fprintln(os.Stderr, "usage: haxxor-bunny commands")
		return 2
	}
	if err := writeDescriptors(w); err != nil {
		fmt.Fprintf(os.Stderr, "commands: %v\n", err)
		return 1
	}
	return 0
}

func writeDescriptors(w io.Writer) error {
	cmds, err := descriptors()
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(cmds)
}

func runDeployCommand(ctx context.Context, args []string) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load: %v\n", err)
		return 1
	}
	opts, err := parseDeployArgs(args, cfg.Discord.DevGuildID)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	if opts.dryRun {
		if err := writeDescriptors(os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "deploy: %v\n", err)
			return 1
		}
		return 0
	}
	if err := cfg.ValidateREST(); err != nil {
		fmt.Fprintf(os.Stderr, "deploy: %v\n", err)
		return 1
	}
	cmds, err := descriptors()
	if err != nil {
		fmt.Fprintf(os.Stderr, "deploy: %v\n", err)
		return 1
	}

	client := discord.NewClient(discord.ClientConfig{BaseURL: cfg.Discord.APIBaseURL, BotToken: cfg.Discord.BotToken})
	var got []discord.ApplicationCommand
	target := "global"
	if opts.global {
		got, err = client.BulkOverwriteGlobalCommands(ctx, cfg.Discord.ApplicationID, cmds)
	} else {
		target = "guild " + opts.guildID
		got, err = client.BulkOverwriteGuildCommands(ctx, cfg.Discord.ApplicationID, opts.guildID, cmds)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "deploy: %v\n", err)
		return 1
	}
	fmt.Printf("Deployed %d commands (%s)\n", len(got), target)
	for _, c := range got {
		fmt.Printf("  /%s\n", c.Name)
	}
	return 0
}

func runEmojiCommand(ctx context.Context, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: haxxor-bunny emoji <emoji>")
		return 2
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load: %v\n", err)
		return 1
	}
	store, err := persistence.Open(cfg.DBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open store: %v\n", err)
		return 1
	}
	defer store.Close()
	pol, err := policy.Load(policyPath(cfg))
	if err != nil {
		fmt.Fprintf(os.Stderr, "policy: %v\n", err)
		return 1
	}

	svc := cdn.New(cdn.Config{Store: store, Policy: pol, MaxBytes: cfg.CDN.MaxBytes})
	if err := svc.CacheEmoji(ctx, args[0]); err != nil {
		fmt.Fprintf(os.Stderr, "emoji: %v\n", err)
		return 1
	}
	fmt.Println(mediaURL(cfg.PublicBaseURL, args[0]))
	return 0
}

func mediaURL(base, filename string) string {
	return strings.TrimRight(base, "/") + "/cdn/" + url.PathEscape(filename)
}

func runBackupCommand(ctx context.Context, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: haxxor-bunny backup <path>")
		return 2
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load: %v\n", err)
		return 1
	}
	store, err := persistence.Open(cfg.DBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open store: %v\n", err)
		return 1
	}
	defer store.Close()
	if err := store.Backup(ctx, args[0]); err != nil {
		fmt.Fprintf(os.Stderr, "backup: %v\n", err)
		return 1
	}
	fmt.Printf("Backed up %s to %s\n", cfg.DBPath, args[0])
	return 0
}

func runStatusCommand(ctx context.Context, args []string) int {
	if len(args) != 0 {
		fmt.Fprintln(os.Stderr, "usage: haxxor-bunny status")
		return 2
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load: %v\n", err)
		return 1
	}

	reqCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, healthURL(cfg.BindAddr), nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "request: %v\n", err)
		return 1
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "status: %v\n", err)
		return 1
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	_, _ = os.Stdout.Write(body)
	if len(body) == 0 || body[len(body)-1] != '\n' {
		_, _ = os.Stdout.Write([]byte("\n"))
	}
	if resp.StatusCode != http.StatusOK {
		return 1
	}
	return 0
}

// healthURL turns a listen address into a URL a local client can reach.
func healthURL(bindAddr string) string {
	addr := strings.TrimSpace(bindAddr)
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return strings.TrimRight(addr, "/") + "/healthz"
	}
	if host, port, err := net.SplitHostPort(addr); err == nil {
		if host == "" || host == "0.0.0.0" || host == "::" {
			host = "127.0.0.1"
		}
		addr = net.JoinHostPort(host, port)
	}
	return "http://" + addr + "/healthz"
}

func policyPath(cfg config.Config) string {
	return filepath.Join(cfg.HomeDir, "policy.yaml")
}
