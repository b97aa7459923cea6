package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/vetrina/internal/core/domain"
)

// busyMessage is shown to the shopper when the assistant is rate limited or overloaded.
const busyMessage = "Mi dispiace, stiamo ricevendo troppe richieste. Riprova tra qualche secondo."

// temporary is implemented by provider errors that may clear on retry.
type temporary interface {
	Temporary() bool
}

var (
	chatSession  string
	chatProducts bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the shop assistant",
	Long: `Starts an interactive conversation with the shop assistant.
Each message retrieves matching products and the reply recommends only
products from that list.

Type /new to start a fresh conversation and /exit (or Ctrl-D) to quit.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatSession, "session", "", "continue an existing session")
	chatCmd.Flags().BoolVar(&chatProducts, "products", false, "list the products each reply was grounded on")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	if chatService == nil {
		return errors.New("chat not configured: set llm.api_key or VETRINA_LLM_API_KEY")
	}

	in := cmd.InOrStdin()
	interactive := isTerminal(in)
	sessionID := chatSession

	if interactive {
		cmd.Println("Vetrina shop assistant. /new starts over, /exit quits.")
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		if interactive {
			cmd.Print("> ")
		}
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/new":
			if sessionID != "" {
				if err := chatService.EndSession(cmd.Context(), sessionID); err != nil {
					cmd.PrintErrf("Could not end session: %v\n", err)
				}
			}
			sessionID = ""
			cmd.Println("Started a new conversation.")
			continue
		}

		reply, err := chatService.Reply(cmd.Context(), sessionID, line)
		var temp temporary
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrInvalidQuery):
			cmd.PrintErrf("Invalid message: %v\n", err)
			continue
		case errors.Is(err, domain.ErrSessionExpired):
			sessionID = ""
			cmd.Println("La conversazione è scaduta, ricominciamo da capo.")
			continue
		case errors.As(err, &temp) && temp.Temporary():
			cmd.Println(busyMessage)
			cmd.PrintErrf("Assistant unavailable: %v\n", err)
			continue
		default:
			return fmt.Errorf("chat failed: %w", err)
		}
		sessionID = reply.SessionID

		cmd.Println(reply.Text)
		if chatProducts && len(reply.Products) > 0 {
			cmd.Println()
			printProducts(cmd, reply.Products)
		}
		cmd.Println()
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	if sessionID != "" && interactive {
		cmd.Printf("Session: %s\n", sessionID)
	}
	return nil
}

// isTerminal reports whether r is an interactive terminal.
func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
