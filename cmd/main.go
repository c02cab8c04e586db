package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"spotpilot/src/connectors"
	"spotpilot/src/database"
	"spotpilot/src/engine"
	"spotpilot/src/server"
)

var Version string

func main() {
	_ = godotenv.Load()

	app := cli.NewApp()
	app.Name = "Spotpilot CMD"
	app.Usage = "The spotpilot command line interface"

	app.Commands = []cli.Command{
		serveCMD,
		runCMD,
		loopCMD,
		tuneCMD,
		calendarCMD,
		analyzeCMD,
		keysCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	serveCMD = cli.Command{
		Name:        "serve",
		Usage:       "run the HTTP API server",
		Action:      serveAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Serve the trading controller HTTP API`,
	}
	runCMD = cli.Command{
		Name:        "run",
		Usage:       "execute a single trading run",
		Action:      runAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Run one full trading cycle and print the report`,
	}
	loopCMD = cli.Command{
		Name:        "loop",
		Usage:       "run trading cycles on the configured period",
		Action:      loopAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Run trading cycles until interrupted`,
	}
	tuneCMD = cli.Command{
		Name:        "tune",
		Usage:       "consult the strategy advisor now",
		Action:      tuneAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Force an advisory consult, bypassing the twice-daily window`,
	}
	calendarCMD = cli.Command{
		Name:        "calendar",
		Usage:       "refresh and print the economic calendar",
		Action:      calendarAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Refresh the cached high-impact event calendar and print it`,
	}
	analyzeCMD = cli.Command{
		Name:        "analyze",
		Usage:       "score a single pair",
		Action:      analyzeAction,
		ArgsUsage:   "<symbol>",
		Flags:       []cli.Flag{},
		Description: `Score one pair with the current strategy configuration`,
	}
	keysCMD = cli.Command{
		Name:  "keys",
		Usage: "manage exchange API credentials",
		Subcommands: []cli.Command{
			{
				Name:   "set",
				Usage:  "store an encrypted API key pair",
				Action: keysSetAction,
				Flags: []cli.Flag{
					cli.StringFlag{Name: "api-key", Usage: "exchange API key"},
					cli.StringFlag{Name: "api-secret", Usage: "exchange API secret"},
				},
			},
			{
				Name:   "clear",
				Usage:  "remove the stored API key pair",
				Action: keysClearAction,
			},
		},
	}
)

func initEngine() *engine.Engine {
	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}
	return engine.NewEngine()
}

func serveAction(_ *cli.Context) error {
	logrus.Info("Starting server CMD")
	logrus.WithField("cmd", "serve")

	eng := initEngine()
	server.StartServer(os.Getenv("SERVER_PORT"), eng)

	return nil
}

func runAction(_ *cli.Context) error {
	logrus.Info("Starting one-shot run CMD")
	logrus.WithField("cmd", "run")

	eng := initEngine()
	report := eng.RunOnce(context.Background())
	printJSON(report)

	if !report.Success {
		return fmt.Errorf("trading run failed: %s", report.Err)
	}
	return nil
}

func loopAction(_ *cli.Context) error {
	logrus.Info("Starting trading loop CMD")
	logrus.WithField("cmd", "loop")

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	eng := initEngine()
	if err := eng.StartLoop(ctx); err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}

	return nil
}

func tuneAction(_ *cli.Context) error {
	logrus.Info("Starting tune CMD")
	logrus.WithField("cmd", "tune")

	eng := initEngine()
	outcome := eng.ForceTune(context.Background())
	printJSON(outcome)

	if outcome.Err != "" {
		return fmt.Errorf("tune failed: %s", outcome.Err)
	}
	return nil
}

func calendarAction(_ *cli.Context) error {
	logrus.Info("Starting calendar CMD")
	logrus.WithField("cmd", "calendar")

	eng := initEngine()
	ctx := context.Background()

	if err := eng.RefreshCalendar(ctx, true); err != nil {
		logrus.WithError(err).Warn("Calendar refresh failed, printing cached events")
	}
	printJSON(eng.CalendarEvents(ctx))

	return nil
}

func analyzeAction(c *cli.Context) error {
	symbol := c.Args().First()
	if symbol == "" {
		return fmt.Errorf("usage: analyze <symbol>")
	}

	logrus.WithField("symbol", symbol).Info("Starting analyze CMD")

	eng := initEngine()
	result, err := eng.AnalyzeSymbol(context.Background(), symbol)
	if err != nil {
		logrus.WithError(err).Error("Analysis failed")
		return err
	}
	printJSON(result)

	return nil
}

func keysSetAction(c *cli.Context) error {
	creds := connectors.Credentials{
		APIKey:    c.String("api-key"),
		APISecret: c.String("api-secret"),
	}
	if creds.APIKey == "" || creds.APISecret == "" {
		return fmt.Errorf("both --api-key and --api-secret are required")
	}

	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	if err := connectors.StoreCredentials(context.Background(), creds); err != nil {
		logrus.WithError(err).Error("Failed to store credentials")
		return err
	}

	fmt.Println("Credentials stored")
	return nil
}

func keysClearAction(_ *cli.Context) error {
	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	if err := connectors.ClearCredentials(context.Background()); err != nil {
		logrus.WithError(err).Error("Failed to clear credentials")
		return err
	}

	fmt.Println("Credentials cleared")
	return nil
}

func printJSON(v interface{}) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		logrus.WithError(err).Error("Failed to encode output")
		return
	}
	fmt.Println(string(out))
}
