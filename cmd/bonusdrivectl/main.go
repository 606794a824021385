// Command bonusdrivectl manages config entries of a running bonusdrived.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/and161185/bonusdrive/internal/service"
)

// ---- config/token store ----

type tokenFile struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "bonusdrive")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "bonusdrive")
}

func tokenPath() string { return filepath.Join(cfgDir(), "token.json") }

func saveToken(tok string, exp time.Time) error {
	if err := os.MkdirAll(cfgDir(), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(tokenPath(), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(tokenFile{AccessToken: tok, ExpiresAt: exp})
}

func loadToken() (string, error) {
	b, err := os.ReadFile(tokenPath())
	if err != nil {
		return "", err
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return "", err
	}
	if tf.AccessToken == "" || time.Now().After(tf.ExpiresAt) {
		return "", errors.New("no valid token (run `bonusdrivectl token` first)")
	}
	return tf.AccessToken, nil
}

// ---- http client ----

// apiError is the daemon's error body.
type apiError struct {
	Status  int    `json:"-"`
	Message string `json:"error"`
	Code    string `json:"code,omitempty"`
}

func (e *apiError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

type client struct {
	base  string
	token string
	hc    *http.Client
}

func newClient(base, token string) *client {
	return &client{
		base:  strings.TrimRight(base, "/"),
		token: token,
		hc:    &http.Client{Timeout: 30 * time.Second},
	}
}

// do sends body as JSON and decodes the response into out when both are non-nil.
func (c *client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		ae := &apiError{Status: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(ae); err != nil || ae.Message == "" {
			ae.Message = http.StatusText(resp.StatusCode)
		}
		return ae
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func entryPath(id string, rest ...string) string {
	p := "/api/v1/entries/" + url.PathEscape(id)
	for _, r := range rest {
		p += "/" + r
	}
	return p
}

// ---- utils ----

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// readPassword prompts on a terminal and falls back to one line of stdin.
func readPassword(stdin *os.File, stderr io.Writer, prompt string) (string, error) {
	fd := int(stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(stderr, prompt)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(stderr)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	b, err := io.ReadAll(io.LimitReader(stdin, 4096))
	if err != nil {
		return "", err
	}
	line, _, _ := strings.Cut(string(b), "\n")
	return strings.TrimRight(line, "\r"), nil
}

func requireID(fs *flag.FlagSet, id string) error {
	if id == "" {
		return fmt.Errorf("%s: need -id", fs.Name())
	}
	return nil
}

func usage() {
	fmt.Fprint(os.Stderr, `bonusdrivectl
Usage:
  bonusdrivectl [-addr URL] <cmd> [args]

Commands:
  version
  token     [-secret S] [-sub name] [-ttl 24h]          (saves token)
  list
  add       -email <email> [-password P] [-base-url U] [-photon-url U]
  get       -id <uuid>
  options   -id <uuid> -photon-url <url|"">
  reauth    -id <uuid> [-password P]
  refresh   -id <uuid>
  states    -id <uuid>
  trips     -id <uuid> [-limit N]
  rm        -id <uuid>

The signing secret defaults to $BONUSDRIVE_JWT_SECRET.
`)
	os.Exit(2)
}

// ---- main ----

var (
	version   = "dev"
	buildDate = "unknown"
)

type env struct {
	addr   string
	stdin  *os.File
	stdout io.Writer
	stderr io.Writer
}

func main() {
	addr := flag.String("addr", "http://localhost:8080", "bonusdrived REST address")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	e := env{addr: *addr, stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}
	if err := run(ctx, e, flag.Arg(0), flag.Args()[1:]); err != nil {
		if errors.Is(err, errUsage) {
			usage()
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

var errUsage = errors.New("usage")

var commands = map[string]bool{
	"version": true, "token": true, "list": true, "add": true, "get": true, "options": true,
	"reauth": true, "refresh": true, "states": true, "trips": true, "rm": true,
}

// run executes one subcommand.
func run(ctx context.Context, e env, cmd string, args []string) error {
	if !commands[cmd] {
		return errUsage
	}

	switch cmd {
	case "version":
		fmt.Fprintf(e.stdout, "bonusdrivectl %s (%s)\n", version, buildDate)
		return nil

	case "token":
		fs := flag.NewFlagSet("token", flag.ContinueOnError)
		secret := fs.String("secret", os.Getenv("BONUSDRIVE_JWT_SECRET"), "JWT signing secret")
		sub := fs.String("sub", "admin", "token subject")
		ttl := fs.Duration("ttl", service.DefaultTokenTTL, "token lifetime")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *secret == "" {
			return errors.New("token: need -secret or BONUSDRIVE_JWT_SECRET")
		}
		tok, exp, err := service.NewTokenIssuer([]byte(*secret), *ttl).Issue(*sub)
		if err != nil {
			return err
		}
		if err := saveToken(tok, exp); err != nil {
			return err
		}
		fmt.Fprintf(e.stdout, "ok, valid until %s\n", exp.Format(time.RFC3339))
		return nil
	}

	token, err := loadToken()
	if err != nil {
		return err
	}
	c := newClient(e.addr, token)

	switch cmd {
	case "list":
		var out []json.RawMessage
		if err := c.do(ctx, http.MethodGet, "/api/v1/entries", nil, &out); err != nil {
			return err
		}
		printJSON(e.stdout, out)

	case "add":
		fs := flag.NewFlagSet("add", flag.ContinueOnError)
		email := fs.String("email", "", "account email")
		password := fs.String("password", "", "account password (prompted when empty)")
		baseURL := fs.String("base-url", "", "BonusDrive API base URL")
		photonURL := fs.String("photon-url", "", "Photon geocoder URL")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *email == "" {
			return errors.New("add: need -email")
		}
		if *password == "" {
			p, err := readPassword(e.stdin, e.stderr, "Password: ")
			if err != nil {
				return err
			}
			*password = p
		}
		body := map[string]string{
			"email":      *email,
			"password":   *password,
			"base_url":   *baseURL,
			"photon_url": *photonURL,
		}
		var out json.RawMessage
		if err := c.do(ctx, http.MethodPost, "/api/v1/entries", body, &out); err != nil {
			return err
		}
		printJSON(e.stdout, out)

	case "get", "refresh", "states", "rm":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		id := fs.String("id", "", "entry id (uuid)")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if err := requireID(fs, *id); err != nil {
			return err
		}
		var (
			method = http.MethodGet
			path   = entryPath(*id)
			out    json.RawMessage
		)
		switch cmd {
		case "refresh":
			method, path = http.MethodPost, entryPath(*id, "refresh")
		case "states":
			path = entryPath(*id, "states")
		case "rm":
			method = http.MethodDelete
		}
		if err := c.do(ctx, method, path, nil, &out); err != nil {
			return err
		}
		if cmd == "rm" {
			fmt.Fprintln(e.stdout, "ok")
			return nil
		}
		printJSON(e.stdout, out)

	case "options":
		fs := flag.NewFlagSet("options", flag.ContinueOnError)
		id := fs.String("id", "", "entry id (uuid)")
		photonURL := fs.String("photon-url", "", `Photon geocoder URL ("" disables)`)
		if err := fs.Parse(args); err != nil {
			return err
		}
		if err := requireID(fs, *id); err != nil {
			return err
		}
		set := false
		fs.Visit(func(f *flag.Flag) { set = set || f.Name == "photon-url" })
		if !set {
			return errors.New("options: need -photon-url")
		}
		var out json.RawMessage
		body := map[string]*string{"photon_url": photonURL}
		if err := c.do(ctx, http.MethodPatch, entryPath(*id, "options"), body, &out); err != nil {
			return err
		}
		printJSON(e.stdout, out)

	case "reauth":
		fs := flag.NewFlagSet("reauth", flag.ContinueOnError)
		id := fs.String("id", "", "entry id (uuid)")
		password := fs.String("password", "", "new password (prompted when empty)")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if err := requireID(fs, *id); err != nil {
			return err
		}
		if *password == "" {
			p, err := readPassword(e.stdin, e.stderr, "Password: ")
			if err != nil {
				return err
			}
			*password = p
		}
		body := map[string]string{"password": *password}
		if err := c.do(ctx, http.MethodPost, entryPath(*id, "reauth"), body, nil); err != nil {
			return err
		}
		fmt.Fprintln(e.stdout, "ok")

	case "trips":
		fs := flag.NewFlagSet("trips", flag.ContinueOnError)
		id := fs.String("id", "", "entry id (uuid)")
		limit := fs.Int("limit", 0, "max records (server default when 0)")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if err := requireID(fs, *id); err != nil {
			return err
		}
		path := entryPath(*id, "trips")
		if *limit > 0 {
			path += "?limit=" + strconv.Itoa(*limit)
		}
		var out []json.RawMessage
		if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
			return err
		}
		printJSON(e.stdout, out)

	default:
		return errUsage
	}
	return nil
}
