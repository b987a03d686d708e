package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	"github.com/ptgott/pgpmail/pgp"
	"github.com/ptgott/pgpmail/send"
	"github.com/ptgott/pgpmail/userconfig"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// listFlag collects a flag that can be repeated. Each value can also hold a
// comma-separated list.
type listFlag []string

func (l *listFlag) String() string {
	return strings.Join(*l, ",")
}

func (l *listFlag) Set(v string) error {
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			*l = append(*l, s)
		}
	}
	return nil
}

func main() {
	// Log with filename and line number. This writes to stderr, so it should
	// be thread safe.
	// https://github.com/rs/zerolog/blob/7ccd4c940bf8a02fcc5f10e5475f9d3daff04d57/log/log.go#L13
	log.Logger = log.With().Caller().Logger()

	// Intercept interrupts so we can get more visibility into them.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func(c chan os.Signal) {
		<-sigCh
		log.Info().Msg("interrupt: exiting")
		os.Exit(1)
	}(sigCh)

	var to, attach listFlag
	configPath := flag.String(
		"config",
		"./config.yaml",
		"path to a JSON or YAML file containing your configuration",
	)
	envPath := flag.String(
		"env",
		".env",
		"path to a file of environment variables to load, if it exists",
	)
	from := flag.String("from", "", "sender address, overriding the config")
	flag.Var(&to, "to", "recipient address; repeat or separate with commas")
	subject := flag.String("subject", "", "subject of the message")
	body := flag.String("body", "", "text of the message")
	bodyFile := flag.String("body-file", "", `read the text of the message from this file ("-" for stdin)`)
	flag.Var(&attach, "attach", "path to a file to attach; repeat for more")
	encrypt := flag.Bool(
		"encrypt",
		true,
		"encrypt a separate copy for each recipient with their public key",
	)
	noEmail := flag.Bool(
		"noemail",
		false,
		"print the message to stdout instead of sending it",
	)
	listKeys := flag.Bool("list-keys", false, "print the keys in the keyring and exit")
	level := flag.String(
		"level",
		"info",
		`log level: "info", "debug", or "warn"`,
	)
	flag.Parse()

	switch *level {
	case "debug":
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	case "warn":
		log.Logger = log.Logger.Level(zerolog.WarnLevel)
	default:
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}

	if err := userconfig.LoadDotEnv(*envPath); err != nil {
		log.Error().Err(err).Msg("Problem loading environment variables")
		os.Exit(1)
	}

	config, err := readConfig(*configPath)
	if err != nil {
		log.Error().
			Str("configPath", *configPath).
			Err(err).
			Msg("Problem parsing your config")
		os.Exit(1)
	}
	if err := config.ApplyEnv(os.Getenv); err != nil {
		log.Error().Err(err).Msg("Problem reading your environment")
		os.Exit(1)
	}
	if *from != "" {
		config.EmailSettings.FromAddress = *from
	}
	// Let -encrypt=false win, but only if the user passed it
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "encrypt" {
			config.PGP.DisableEncryption = !*encrypt
		}
	})

	if *listKeys {
		pc, err := config.PGP.CheckAndSetDefaults()
		if err == nil {
			err = printKeys(os.Stdout, pc.KeyringPath)
		}
		if err != nil {
			log.Error().Err(err).Msg("Problem listing keys")
			os.Exit(1)
		}
		return
	}

	checkedConfig, err := config.CheckAndSetDefaults()
	if err != nil {
		log.Error().
			Err(err).
			Msg("Problem validating your config")
		os.Exit(1)
	}

	text, err := readBody(*body, *bodyFile)
	if err != nil {
		log.Error().Err(err).Msg("Problem reading the message text")
		os.Exit(1)
	}

	sc := send.Config{
		To:          to,
		Subject:     *subject,
		Text:        text,
		Attachments: attach,
		NoEmail:     *noEmail,
		OutputWr:    os.Stdout,
	}
	if err := send.Run(context.Background(), &sc, &checkedConfig); err != nil {
		log.Error().Err(err).Msg("Problem sending the message")
		os.Exit(1)
	}
}

// readConfig parses the config file at path. A missing file is fine, since
// the environment and flags can provide everything.
func readConfig(path string) (*userconfig.Meta, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Debug().Str("configPath", path).Msg("no config file, relying on the environment")
		return &userconfig.Meta{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return userconfig.Parse(f)
}

func readBody(body string, bodyFile string) (string, error) {
	if bodyFile == "" {
		return body, nil
	}
	if body != "" {
		return "", errors.New("use either -body or -body-file, not both")
	}
	var r io.Reader = os.Stdin
	if bodyFile != "-" {
		f, err := os.Open(bodyFile)
		if err != nil {
			return "", err
		}
		defer f.Close()
		r = f
	}
	b, err := io.ReadAll(r)
	return string(b), err
}

func printKeys(w io.Writer, keyringPath string) error {
	k, err := pgp.OpenKeyring(keyringPath)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, key := range k.ListKeys() {
		fmt.Fprintf(tw, "%v\t%v\t%v\n", key.KeyID, key.Fingerprint, strings.Join(key.UIDs, "; "))
	}
	return tw.Flush()
}
