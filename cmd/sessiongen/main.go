// sessiongen — интерактивная утилита выпуска строки сессии: вход по номеру
// телефона с кодом и, при необходимости, 2FA-паролем, затем печать строки,
// пригодной для TG_SESSIONS_JSON, TG_SESSION_STRING или POST /add_account.
package main

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	"github.com/kr/pretty"
	"go.uber.org/zap"
	"golang.org/x/term"

	"telegram-accounts/internal/infra/config"
	"telegram-accounts/internal/infra/logger"
	"telegram-accounts/internal/infra/sessions"
	"telegram-accounts/internal/infra/storage"
)

func main() {
	envPath := flag.String("env", "assets/.env", "path to .env file")
	output := flag.String("o", "", "write the session string to a file instead of stdout")
	flag.Parse()

	cfg, err := config.Load(*envPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}
	logger.Init(cfg.LogLevel, nil)
	if cfg.APIID == 0 || cfg.APIHash == "" {
		logger.Fatal("TG_API_ID and TG_API_HASH must be set")
	}

	rl, err := readline.New("> ")
	if err != nil {
		logger.Fatal("failed to init readline", zap.Error(err))
	}
	defer rl.Close()

	phone, err := readLine(rl, "Enter phone number (E.164): ")
	if err != nil {
		logger.Fatal("failed to read phone", zap.Error(err))
	}

	store := &session.StorageMemory{}
	client := telegram.NewClient(cfg.APIID, cfg.APIHash, telegram.Options{
		SessionStorage: store,
	})

	ctx := context.Background()
	flow := auth.NewFlow(terminalAuthenticator{rl: rl, phone: phone}, auth.SendCodeOptions{})

	if err = client.Run(ctx, func(ctx context.Context) error {
		if authErr := client.Auth().IfNecessary(ctx, flow); authErr != nil {
			return authErr
		}
		self, selfErr := client.Self(ctx)
		if selfErr != nil {
			return selfErr
		}
		pretty.Println("authorized as:", self.FirstName, self.LastName, self.Username)
		return nil
	}); err != nil {
		logger.Fatal("login failed", zap.Error(err))
	}

	credential, err := sessions.Export(ctx, store)
	if err != nil {
		logger.Fatal("failed to encode session", zap.Error(err))
	}

	if *output != "" {
		if err = storage.AtomicWriteFile(*output, []byte(credential+"\n")); err != nil {
			logger.Fatal("failed to write session file", zap.Error(err))
		}
		logger.Infof("session string written to %s", *output)
		return
	}
	fmt.Println(credential)
}

func readLine(rl *readline.Instance, prompt string) (string, error) {
	rl.SetPrompt(prompt)
	line, err := rl.Readline()
	return strings.TrimSpace(line), err
}

// terminalAuthenticator реализует auth.UserAuthenticator поверх readline.
type terminalAuthenticator struct {
	rl    *readline.Instance
	phone string
}

func (t terminalAuthenticator) Phone(_ context.Context) (string, error) {
	return t.phone, nil
}

func (t terminalAuthenticator) Code(_ context.Context, _ *tg.AuthSentCode) (string, error) {
	return readLine(t.rl, "Enter the code from Telegram: ")
}

// Password считывает 2FA-пароль без эха.
func (t terminalAuthenticator) Password(_ context.Context) (string, error) {
	fmt.Print("Enter 2FA password: ")
	passwordBytes, err := term.ReadPassword(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(passwordBytes), nil
}

func (t terminalAuthenticator) AcceptTermsOfService(_ context.Context, tos tg.HelpTermsOfService) error {
	fmt.Printf("Telegram Terms of Service: %s\n", tos.Text)
	resp, err := readLine(t.rl, "Do you accept? (y/n): ")
	if err != nil {
		return err
	}
	if resp != "y" && resp != "Y" {
		return fmt.Errorf("terms of service were not accepted")
	}
	return nil
}

func (t terminalAuthenticator) SignUp(_ context.Context) (auth.UserInfo, error) {
	firstName, err := readLine(t.rl, "Enter your first name: ")
	if err != nil {
		return auth.UserInfo{}, err
	}
	lastName, _ := readLine(t.rl, "Enter your last name (optional): ")
	return auth.UserInfo{FirstName: firstName, LastName: lastName}, nil
}
