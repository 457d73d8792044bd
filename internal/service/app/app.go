package app

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"anon_messenger/internal/cryptographic/dh"
	"anon_messenger/internal/model"
	"anon_messenger/internal/utils/log"

	"github.com/gdamore/tcell/v2"
	"github.com/gorilla/websocket"
	"github.com/rivo/tview"
	"go.uber.org/zap"
)

type (
	App struct {
		app     *tview.Application
		chatbox *tview.TextView
		input   *tview.InputField

		host string
		code string
		peer string

		conn    *websocket.Conn
		writeMu sync.Mutex

		priv [32]byte
		pub  [32]byte

		mu       sync.Mutex
		peerPub  *[32]byte
		sending  *sendSession
		recvKeys map[string][32]byte
		pending  []string

		lastTyping time.Time
	}
)

func NewApp(host string) *App {
	return &App{
		app:      tview.NewApplication(),
		host:     host,
		recvKeys: make(map[string][32]byte),
	}
}

// Run registers an anonymous identity, binds it on a relay connection and
// starts the chat UI. Blocks until the UI exits.
func (c *App) Run() {
	priv, pub, err := dh.NewX25519KeyPair()
	if err != nil {
		log.Fatal("generate key pair failed", zap.Error(err))
	}
	c.priv, c.pub = priv, pub

	code, ttlMinutes, err := c.register()
	if err != nil {
		log.Fatal("register identity failed", zap.Error(err))
	}
	c.code = code
	fmt.Printf("Your anonymous code: %s (expires in %d min)\n", code, ttlMinutes)

	var peer string
	fmt.Print("Enter recipient's code: ")
	if _, err := fmt.Scan(&peer); err != nil {
		fmt.Println("error:", err)
		return
	}
	c.peer = peer

	c.conn, err = c.dialRelay()
	if err != nil {
		log.Fatal("connect to relay failed", zap.Error(err))
	}

	go c.listenOnRelay()

	// announce our public key so the peer can answer with theirs
	if err := c.writeEnvelope(&model.Envelope{
		Sender:    c.code,
		Receiver:  c.peer,
		Kind:      model.KindKeyExchangeRequest,
		PublicKey: c.pub[:],
	}); err != nil {
		log.Fatal("key exchange failed", zap.Error(err))
	}

	c.renderUI()
}

func (c *App) Stop() {
	if c.conn != nil {
		c.conn.Close()
	}
	_ = c.revoke()
}

// blocking function
func (c *App) renderUI() {
	c.chatbox = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	c.chatbox.SetBorder(true).SetTitle(fmt.Sprintf(" Chat with %s ", c.peer))

	c.input = tview.NewInputField().
		SetLabel("Message: ").
		SetFieldWidth(0)
	c.input.SetBorder(true).SetTitle(" New Message ")

	c.input.SetChangedFunc(func(text string) {
		if text != "" {
			go c.notifyTyping()
		}
	})

	c.input.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter {
			text := c.input.GetText()
			if text == "" {
				return
			}

			go func(msg string) {
				if err := c.SendMessage(msg); err != nil {
					c.app.Suspend(func() {
						log.Error("send message failed", zap.Error(err))
					})
				}
			}(text)
		}
	})

	layout := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(c.chatbox, 0, 1, false).
		AddItem(c.input, 3, 0, true)

	if err := c.app.SetRoot(layout, true).SetFocus(c.input).Run(); err != nil {
		log.Fatal("cannot init app", zap.Error(err))
	}
}

func (c *App) listenOnRelay() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			log.Debug("relay connection closed", zap.Error(err))
			c.conn.Close()
			break
		}

		var env model.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Error("unmarshal envelope failed", zap.Error(err))
			continue
		}

		if err := c.receive(&env); err != nil {
			c.app.Suspend(func() {
				log.Error("receive envelope failed", zap.Error(err))
			})
		}
	}
}

func (c *App) receive(env *model.Envelope) error {
	switch env.Kind {
	case model.KindKeyExchangeRequest:
		if env.Sender != c.peer || len(env.PublicKey) != 32 {
			return nil
		}
		c.storePeerKey(env.PublicKey)
		// answer with our own key so both sides can wrap session keys
		return c.writeEnvelope(&model.Envelope{
			Sender:    c.code,
			Receiver:  c.peer,
			Kind:      model.KindPublicKeyShare,
			PublicKey: c.pub[:],
		})

	case model.KindPublicKeyShare:
		if env.Sender != c.peer || len(env.PublicKey) != 32 {
			return nil
		}
		c.storePeerKey(env.PublicKey)
		return nil

	case model.KindTyping:
		if env.Sender == c.peer && env.IsTyping {
			c.showTyping()
		}
		return nil

	case model.KindSystem:
		c.appendLine(fmt.Sprintf("[red]%s:[-] %s\n", env.Sender, env.Content))
		return nil

	case model.KindChat:
		text, err := c.openChat(env)
		if err != nil {
			return err
		}
		c.appendLine(fmt.Sprintf("[green]%s:[-] %s\n", env.Sender, text))
		return nil

	case model.KindMusicSync:
		return nil
	}
	return nil
}

func (c *App) appendLine(line string) {
	c.app.QueueUpdateDraw(func() {
		fmt.Fprint(c.chatbox, line)
		c.chatbox.ScrollToEnd()
	})
}

func (c *App) showTyping() {
	c.app.QueueUpdateDraw(func() {
		c.chatbox.SetTitle(fmt.Sprintf(" Chat with %s (typing...) ", c.peer))
	})
	time.AfterFunc(3*time.Second, func() {
		c.app.QueueUpdateDraw(func() {
			c.chatbox.SetTitle(fmt.Sprintf(" Chat with %s ", c.peer))
		})
	})
}

// notifyTyping sends at most one typing indicator per two seconds.
func (c *App) notifyTyping() {
	c.mu.Lock()
	if time.Since(c.lastTyping) < 2*time.Second {
		c.mu.Unlock()
		return
	}
	c.lastTyping = time.Now()
	c.mu.Unlock()

	_ = c.writeEnvelope(&model.Envelope{
		Sender:   c.code,
		Receiver: c.peer,
		Kind:     model.KindTyping,
		IsTyping: true,
	})
}

func (c *App) writeEnvelope(env *model.Envelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(env)
}
