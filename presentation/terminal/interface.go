package terminal

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"autocloudskill/application/automation"
	"autocloudskill/config"
	"autocloudskill/domain/entities"
	"autocloudskill/infrastructure/identity"
	"autocloudskill/infrastructure/mail"
	"autocloudskill/infrastructure/speech"
	"autocloudskill/observability"
)

// TerminalInterface is the interactive shell over the automation core.
type TerminalInterface struct {
	core   *automation.Automation
	logger *zap.Logger
	reader *bufio.Reader
}

// NewTerminalInterface - loads configuration and wires the automation core
func NewTerminalInterface() (*TerminalInterface, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	observability.Initialize(cfg.Logger)
	logger := observability.GetLogger()

	opts := automation.Options{
		Identity:  identity.NewGenerator(cfg.Services, logger),
		Addresses: mail.NewRelayClient(cfg.Services, logger),
		Mailbox:   mail.NewMailboxClient(cfg.Services, logger),
	}

	if cfg.Services.GeminiAPIKey != "" {
		transcriber, err := speech.NewGeminiTranscriber(context.Background(), cfg.Services, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize transcriber: %w", err)
		}
		opts.Transcriber = transcriber
	} else {
		logger.Warn("no Gemini API key configured, captcha clearance falls back to manual")
	}

	core, err := automation.New(cfg, logger, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize automation: %w", err)
	}

	return &TerminalInterface{
		core:   core,
		logger: logger,
		reader: bufio.NewReader(os.Stdin),
	}, nil
}

// Run reads commands until quit.
func (t *TerminalInterface) Run() error {
	defer t.Close()

	fmt.Println("AutoCloudSkill")
	fmt.Println("==============")
	fmt.Println("Commands:")
	fmt.Println("  register                      register with a generated identity")
	fmt.Println("  confirm <link> <email> <pwd>  open a confirmation link and sign in")
	fmt.Println("  await <email> <pwd>           poll the mailbox, then confirm")
	fmt.Println("  lab <url>                     start a lab and extract its credential")
	fmt.Println("  video <api_key> <prompt...>   render a clip with an extracted key")
	fmt.Println("  accounts                      list stored accounts")
	fmt.Println("  history                       list past runs")
	fmt.Println("  quit")
	fmt.Println()

	for {
		fmt.Print("> ")
		input, err := t.reader.ReadString('\n')
		if err != nil {
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if input == "quit" || input == "exit" || input == "q" {
			return nil
		}

		t.dispatch(input)
	}
}

func (t *TerminalInterface) dispatch(input string) {
	fields := strings.Fields(input)
	command, args := fields[0], fields[1:]

	switch command {
	case "register":
		t.printResult(t.core.RegisterGenerated())

	case "confirm":
		if len(args) < 3 {
			fmt.Println("usage: confirm <link> <email> <password>")
			return
		}
		t.printResult(t.core.ConfirmViaLink(args[0], args[1], args[2]))

	case "await":
		if len(args) < 2 {
			fmt.Println("usage: await <email> <password>")
			return
		}
		t.printResult(t.core.AwaitAndConfirm(args[0], args[1]))

	case "lab":
		if len(args) < 1 {
			fmt.Println("usage: lab <url>")
			return
		}
		t.printResult(t.core.StartLab(args[0]))

	case "video":
		if len(args) < 2 {
			fmt.Println("usage: video <api_key> <prompt...>")
			return
		}
		t.printResult(t.core.GenerateVideo(args[0], strings.Join(args[1:], " ")))

	case "accounts":
		accounts, err := t.core.Accounts()
		if err != nil {
			fmt.Printf("error: %v\n", err)
			return
		}
		if len(accounts) == 0 {
			fmt.Println("no stored accounts")
			return
		}
		for _, acc := range accounts {
			status := "unconfirmed"
			if acc.Confirmed {
				status = "confirmed"
			}
			fmt.Printf("  %s  (%s %s, %s)\n", acc.Email, acc.FirstName, acc.LastName, status)
		}

	case "history":
		history, err := t.core.History()
		if err != nil {
			fmt.Printf("error: %v\n", err)
			return
		}
		if len(history) == 0 {
			fmt.Println("no recorded runs")
			return
		}
		for _, run := range history {
			t.printRunLine(run)
		}

	default:
		fmt.Printf("unknown command: %s\n", command)
	}
}

func (t *TerminalInterface) printResult(result entities.RunResult) {
	t.printRunLine(result)
	if len(result.Steps) > 0 {
		fmt.Printf("  steps: %s\n", strings.Join(result.StepNames(), " -> "))
	}
	for key, value := range result.Payload {
		if key == "password" {
			value = "********"
		}
		fmt.Printf("  %s: %s\n", key, value)
	}
	if result.Error != "" {
		fmt.Printf("  error: %s\n", result.Error)
	}
	fmt.Println()
}

func (t *TerminalInterface) printRunLine(run entities.RunResult) {
	outcome := "FAILED"
	if run.Success {
		outcome = "OK"
	}
	fmt.Printf("[%s] %s  state=%s\n", outcome, run.RunID, run.State)
}

// Close shuts the automation core down.
func (t *TerminalInterface) Close() error {
	err := t.core.Shutdown()
	observability.Sync()
	return err
}
