// Command console is an interactive WebSocket client for /ws/:session_id.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type inbound struct {
	Message string `json:"message"`
	Model   string `json:"model,omitempty"`
}

type outbound struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Content   string `json:"content,omitempty"`
	Status    string `json:"status,omitempty"`
	Error     string `json:"error,omitempty"`
	Message   *struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message,omitempty"`
}

func main() {
	serverURL := flag.String("url", "ws://localhost:8000", "relay base URL")
	sessionID := flag.String("session", "", "session id, a new one is generated when empty")
	model := flag.String("model", "", "model to use (openai or gemini)")
	flag.Parse()

	if *sessionID == "" {
		*sessionID = uuid.NewString()
	}

	url := strings.TrimRight(*serverURL, "/") + "/ws/" + *sessionID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		log.Fatalf("Failed to connect to server: %v", err)
	}
	defer conn.Close()
	fmt.Printf("Connected to %s\n", url)

	go func() {
		for {
			var msg outbound
			if err := conn.ReadJSON(&msg); err != nil {
				log.Println("Error reading message:", err)
				os.Exit(0)
			}
			switch {
			case msg.Error != "":
				fmt.Printf("\n[error] %s\n> ", msg.Error)
			case msg.Content != "":
				fmt.Print(msg.Content)
			case msg.Status != "":
				fmt.Print("\n> ")
			case msg.Type == "transcript" && msg.Message != nil && msg.Message.Role == "user":
				fmt.Printf("[%s] %s\n", msg.Message.Role, msg.Message.Content)
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Shutting down...")
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
		os.Exit(0)
	}()

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("Enter messages to send to the server (type 'exit' to quit):")
	fmt.Print("> ")
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "exit" {
			break
		}
		if text == "" {
			fmt.Print("> ")
			continue
		}
		if err := conn.WriteJSON(inbound{Message: text, Model: *model}); err != nil {
			log.Println("Error sending message:", err)
			break
		}
	}
}
