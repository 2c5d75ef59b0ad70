/*
listingbot creates marketplace listings by driving the seller web ui in a
real browser, one persistent browser profile per seller account.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"sync"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/theeshop/listingbot/internal/api"
	"github.com/theeshop/listingbot/internal/browser"
	"github.com/theeshop/listingbot/internal/builder"
	"github.com/theeshop/listingbot/internal/config"
	"github.com/theeshop/listingbot/internal/describe"
	"github.com/theeshop/listingbot/internal/imageedit"
	"github.com/theeshop/listingbot/internal/log"
	"github.com/theeshop/listingbot/internal/objectstore"
	"github.com/theeshop/listingbot/internal/output"
	"github.com/theeshop/listingbot/internal/product"
	"github.com/theeshop/listingbot/internal/runner"
	"github.com/theeshop/listingbot/internal/session"
	"github.com/theeshop/listingbot/internal/storage"
	"github.com/theeshop/listingbot/internal/types"
	"github.com/theeshop/listingbot/internal/workflow"
)

var version = "dev"

type VersionFlag string

func (v VersionFlag) Decode(_ *kong.DecodeContext) error { return nil }
func (v VersionFlag) IsBool() bool                       { return true }
func (v VersionFlag) BeforeApply(app *kong.Kong, vars kong.Vars) error {
	fmt.Println(vars["version"])
	app.Exit(0)
	return nil
}

type cli struct {
	Version VersionFlag `short:"v" long:"version" help:"Print the version and exit."`
	Debug   bool        `short:"d" long:"debug" help:"Set log level to 'debug' and store additional helpful debugging data."`
	Config  string      `short:"c" default:"./listingbot.yml" help:"The location of the configuration file." type:"path"`

	Create   CreateCmd   `cmd:"" help:"Create a listing for an account from a product file."`
	Login    LoginCmd    `cmd:"" help:"Open the login page of an account and wait until the login is done by hand."`
	Accounts AccountsCmd `cmd:"" help:"List the registered accounts."`
	Runs     RunsCmd     `cmd:"" help:"List past listing runs."`
	Serve    ServeCmd    `cmd:"" help:"Serve the http api that starts runs per account."`
	Build    BuildCmd    `cmd:"" help:"Build a product file with generated photos and copy from raw product photos."`
	SetKey   SetKeyCmd   `cmd:"" name:"set-key" help:"Store an api key in the secrets file."`
}

// app bundles what the commands share.
type app struct {
	cfg   *config.Config
	store *storage.Storage
}

func newApp(configPath string) (*app, error) {
	cfg, err := config.NewConfig(configPath)
	if err != nil {
		return nil, err
	}
	store, err := storage.NewStorage(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.DatabasePath, err)
	}
	return &app{cfg: cfg, store: store}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		slog.Warn(fmt.Sprintf("failed to close database: %v", err))
	}
}

func (a *app) driver() (browser.Driver, error) {
	b := a.cfg.Browser
	return browser.NewDriver(b.Driver, browser.Options{
		Headless:     b.Headless,
		UserAgent:    b.UserAgent,
		ExecPath:     b.ExecPath,
		WindowWidth:  b.WindowWidth,
		WindowHeight: b.WindowHeight,
	})
}

func (a *app) sessions() (*session.Manager, error) {
	d, err := a.driver()
	if err != nil {
		return nil, err
	}
	m := session.NewManager(d, a.cfg.ProfilesDir, a.store)
	m.LoginURL = a.cfg.Workflow.LoginURL
	return m, nil
}

func (a *app) workflowConfig() workflow.Config {
	w := a.cfg.Workflow
	return workflow.Config{
		CreateURL:   w.CreateURL,
		StepTimeout: w.StepTimeout,
		Settle:      w.Settle,
		PhotoSettle: w.PhotoSettle,
		HoldOpen:    w.HoldOpen,
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

type CreateCmd struct {
	Account  string `short:"a" help:"The account to create the listing for." required:""`
	Product  string `short:"p" help:"The product file (yaml)." required:"" type:"existingfile"`
	Stdout   bool   `short:"o" help:"If set to true the run record will be written to stdout despite any other existing writer configurations."`
	Headless bool   `help:"Run the browser without a window."`
	Hold     bool   `help:"Keep the browser open after the form is filled until interrupted."`
}

func (c *CreateCmd) Run(globals *cli) error {
	a, err := newApp(globals.Config)
	if err != nil {
		slog.Error(fmt.Sprintf("%v", err))
		return err
	}
	defer a.close()
	if c.Headless {
		a.cfg.Browser.Headless = true
	}
	if c.Stdout {
		a.cfg.Writer.Type = output.STDOUT_WRITER_TYPE
	}

	in, err := product.LoadFile(c.Product)
	if err != nil {
		slog.Error(fmt.Sprintf("%v", err))
		return err
	}
	if s, ok := product.SuggestWhenMade(in.WhenMade); ok && in.WhenMade != "" {
		slog.Warn(fmt.Sprintf("unknown when_made %q, did you mean %q?", in.WhenMade, s))
	}

	writer, err := output.NewWriter(&a.cfg.Writer)
	if err != nil {
		slog.Error(err.Error())
		return err
	}
	sessions, err := a.sessions()
	if err != nil {
		slog.Error(err.Error())
		return err
	}
	defer func() {
		if err := sessions.CloseAll(); err != nil {
			slog.Warn(fmt.Sprintf("failed to close browser: %v", err))
		}
	}()

	ctx, cancel := signalContext()
	defer cancel()

	recordChan := make(chan types.RunRecord, 1)
	writerWg := sync.WaitGroup{}
	writerWg.Add(1)
	go func() {
		defer writerWg.Done()
		writer.Write(recordChan)
	}()

	r := runner.New(sessions, a.store, a.cfg.DiagnosticsDir, a.workflowConfig())
	r.Records = recordChan
	out, err := r.Run(ctx, c.Account, *in)
	close(recordChan)
	writerWg.Wait()
	if err != nil {
		slog.Error(err.Error())
		return err
	}
	printOutcome(os.Stdout, out, *in)

	if c.Hold && out.Done() {
		slog.Info("browser stays open, press ctrl+c to close it")
		<-ctx.Done()
	}
	return out.Err()
}

type LoginCmd struct {
	Account string `short:"a" help:"The account to log in." required:""`
	TUI     bool   `short:"t" help:"Confirm the login with a terminal dialog instead of pressing enter."`
}

func (l *LoginCmd) Run(globals *cli) error {
	a, err := newApp(globals.Config)
	if err != nil {
		slog.Error(fmt.Sprintf("%v", err))
		return err
	}
	defer a.close()
	// a manual login needs a visible browser
	a.cfg.Browser.Headless = false
	sessions, err := a.sessions()
	if err != nil {
		slog.Error(err.Error())
		return err
	}
	defer sessions.CloseAll()

	ctx, cancel := signalContext()
	defer cancel()

	var waiter session.LoginWaiter = session.NewStdinWaiter()
	if l.TUI {
		waiter = session.TUIWaiter{}
	}
	if err := sessions.ManualLogin(ctx, l.Account, waiter); err != nil {
		if errors.Is(err, session.ErrLoginCancelled) {
			slog.Warn("login cancelled")
		} else {
			slog.Error(err.Error())
		}
		return err
	}
	return nil
}

type AccountsCmd struct{}

func (ac *AccountsCmd) Run(globals *cli) error {
	a, err := newApp(globals.Config)
	if err != nil {
		slog.Error(fmt.Sprintf("%v", err))
		return err
	}
	defer a.close()
	accounts, err := a.store.ListAccounts(context.Background())
	if err != nil {
		slog.Error(err.Error())
		return err
	}
	printAccounts(os.Stdout, accounts)
	return nil
}

type RunsCmd struct {
	Account string `short:"a" help:"Only list the runs of this account."`
	Limit   int    `short:"l" default:"20" help:"The maximum number of runs to list."`
}

func (rc *RunsCmd) Run(globals *cli) error {
	a, err := newApp(globals.Config)
	if err != nil {
		slog.Error(fmt.Sprintf("%v", err))
		return err
	}
	defer a.close()
	runs, err := a.store.ListRuns(context.Background(), rc.Account, rc.Limit)
	if err != nil {
		slog.Error(err.Error())
		return err
	}
	printRuns(os.Stdout, runs)
	return nil
}

type ServeCmd struct {
	Addr string `short:"l" help:"The address to listen on. Overrides the configuration."`
}

func (sc *ServeCmd) Run(globals *cli) error {
	a, err := newApp(globals.Config)
	if err != nil {
		slog.Error(fmt.Sprintf("%v", err))
		return err
	}
	defer a.close()
	if sc.Addr != "" {
		a.cfg.Server.Addr = sc.Addr
	}
	writer, err := output.NewWriter(&a.cfg.Writer)
	if err != nil {
		slog.Error(err.Error())
		return err
	}
	sessions, err := a.sessions()
	if err != nil {
		slog.Error(err.Error())
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	recordChan := make(chan types.RunRecord, 16)
	writerWg := sync.WaitGroup{}
	writerWg.Add(1)
	go func() {
		defer writerWg.Done()
		writer.Write(recordChan)
	}()

	r := runner.New(sessions, a.store, a.cfg.DiagnosticsDir, a.workflowConfig())
	r.Records = recordChan
	err = api.NewServer(r, a.store).ListenAndServe(ctx, a.cfg.Server.Addr)

	slog.Info("waiting for running listings to finish")
	r.Wait()
	close(recordChan)
	writerWg.Wait()
	if cerr := sessions.CloseAll(); cerr != nil {
		slog.Warn(fmt.Sprintf("failed to close browsers: %v", cerr))
	}
	if err != nil {
		slog.Error(err.Error())
	}
	return err
}

type BuildCmd struct {
	Images   []string `arg:"" help:"One to four photos of the same product." type:"existingfile"`
	Category string   `short:"k" help:"The category search query for the listing." required:""`
	Hints    string   `short:"H" help:"Optional product facts or keywords for the generated copy."`
	Scenes   int      `short:"n" default:"2" help:"Number of generated photos per source photo (1-5)."`
}

func (b *BuildCmd) Run(globals *cli) error {
	a, err := newApp(globals.Config)
	if err != nil {
		slog.Error(fmt.Sprintf("%v", err))
		return err
	}
	defer a.close()
	ctx, cancel := signalContext()
	defer cancel()

	imageKey, err := config.LookupKey(config.ImageEditKey, a.cfg.SecretsFile)
	if err != nil {
		slog.Error(err.Error())
		return err
	}
	describeKey, err := config.LookupKey(config.DescribeKey, a.cfg.SecretsFile)
	if err != nil {
		slog.Warn(fmt.Sprintf("%v, calling the describe service without a key", err))
	}
	slog.Debug(fmt.Sprintf("using image key %s", config.Mask(imageKey, 4)))

	uploader, err := objectstore.NewS3Uploader(ctx, a.cfg.ObjectStore.Bucket, a.cfg.ObjectStore.Region)
	if err != nil {
		slog.Error(err.Error())
		return err
	}
	uploader.Prefix = a.cfg.ObjectStore.Prefix
	links, err := builder.OpenLinkStore(filepath.Join(a.cfg.ProductsDir, "links.json"))
	if err != nil {
		slog.Error(err.Error())
		return err
	}
	bld := &builder.Builder{
		ProductsDir: a.cfg.ProductsDir,
		Uploader:    uploader,
		Editor:      imageedit.NewClient(a.cfg.ImageEdit.BaseURL, imageKey, a.cfg.ImageEdit.RatePerSecond),
		Describer:   describe.NewClient(a.cfg.Describe.URL, describeKey, a.cfg.Describe.Model),
		Links:       links,
	}
	res, err := bld.Build(ctx, builder.Request{
		Images:        b.Images,
		CategoryQuery: b.Category,
		Hints:         b.Hints,
		Scenes:        b.Scenes,
	})
	if err != nil {
		slog.Error(err.Error())
		return err
	}
	fmt.Println(res.File)
	return nil
}

type SetKeyCmd struct {
	Name  string `arg:"" enum:"CLAID_API_KEY,DESCRIBE_API_KEY" help:"The name of the key."`
	Value string `arg:"" help:"The key."`
}

func (s *SetKeyCmd) Run(globals *cli) error {
	cfg, err := config.NewConfig(globals.Config)
	if err != nil {
		return err
	}
	if err := config.SaveKey(cfg.SecretsFile, s.Name, s.Value); err != nil {
		slog.Error(err.Error())
		return err
	}
	slog.Info(fmt.Sprintf("saved %s %s to %s", s.Name, config.Mask(s.Value, 4), cfg.SecretsFile))
	return nil
}

func getVersion() string {
	buildInfo, ok := debug.ReadBuildInfo()
	if ok {
		if buildInfo.Main.Version != "" && buildInfo.Main.Version != "(devel)" {
			return buildInfo.Main.Version
		}
	}
	return version
}

func main() {
	cli := cli{
		Version: VersionFlag(getVersion()),
	}

	ctx := kong.Parse(&cli,
		kong.Vars{
			"version": string(cli.Version),
		})

	log.Debug = cli.Debug
	log.InitializeDefaultLogger()

	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
