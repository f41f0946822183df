// Command coscribe-cli is a terminal chat client for a running coscribe
// server.
//
// Usage:
//
//	export COSCRIBE_URL="http://localhost:8080"
//	export COSCRIBE_USER="alice"
//	go run cmd/coscribe-cli/main.go
//
// Commands:
//
//	/exit - Exit the program
//	<message> - Send a message to the document's agent
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/gorilla/websocket"

	"coscribe/pkg/domain"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1)

	senderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("5")).
			Bold(true)

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("2")).
			Bold(true)

	cursorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	selectedItemStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	toolStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true).Padding(0, 1)
)

type state int

const (
	stateMenu state = iota
	stateSelectingType
	stateSelectingDocument
	stateChatting
)

var documentTypes = []string{
	domain.DocTypeFreeform,
	domain.DocTypeStoryboard,
	domain.DocTypeCourseOutline,
}

type errMsg struct{ err error }

type documentOpenedMsg struct {
	doc  *domain.Document
	conn *websocket.Conn
	msgs <-chan domain.ThreadMessage
}

type threadMessageMsg domain.ThreadMessage

type connClosedMsg struct{ err error }

type model struct {
	client *apiClient

	state              state
	availableDocuments []domain.Document
	currentDoc         *domain.Document
	conn               *websocket.Conn
	incoming           <-chan domain.ThreadMessage
	cursor             int
	listOffset         int
	width              int
	height             int
	err                error

	viewport viewport.Model
	textarea textarea.Model

	messages []domain.ThreadMessage
	renderer *glamour.TermRenderer
}

func initialModel(client *apiClient) model {
	ta := textarea.New()
	ta.Placeholder = "Send a message..."
	ta.Focus()
	ta.Prompt = "┃ "
	ta.CharLimit = 2000
	ta.SetWidth(80)
	ta.SetHeight(3)
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.ShowLineNumbers = false

	vp := viewport.New(80, 20)
	vp.SetContent("Welcome! Select an option.")

	// Use "light" style to avoid terminal queries that leak into input
	r, _ := glamour.NewTermRenderer(
		glamour.WithStandardStyle("light"),
		glamour.WithWordWrap(80),
	)

	return model{
		client:   client,
		state:    stateMenu,
		viewport: vp,
		textarea: ta,
		renderer: r,
	}
}

func (m model) Init() tea.Cmd {
	return textarea.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	var tiCmd, vpCmd tea.Cmd
	// Keep menu keystrokes out of the textarea.
	switch msg.(type) {
	case tea.KeyMsg:
		if m.state == stateChatting {
			m.textarea, tiCmd = m.textarea.Update(msg)
			cmds = append(cmds, tiCmd)
		}
	default:
		m.textarea, tiCmd = m.textarea.Update(msg)
		cmds = append(cmds, tiCmd)
	}

	m.viewport, vpCmd = m.viewport.Update(msg)
	cmds = append(cmds, vpCmd)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.textarea.SetWidth(msg.Width)
		m.viewport.Height = msg.Height - m.textarea.Height() - 2
		if m.viewport.Height < 0 {
			m.viewport.Height = 0
		}
		m.viewport.YPosition = 2

		m.renderer, _ = glamour.NewTermRenderer(
			glamour.WithStandardStyle("light"),
			glamour.WithWordWrap(m.width-4),
		)

		maxViewable := m.height - 7
		if maxViewable < 1 {
			maxViewable = 1
		}
		if m.cursor < m.listOffset {
			m.listOffset = m.cursor
		}
		if m.cursor >= m.listOffset+maxViewable {
			m.listOffset = m.cursor - maxViewable + 1
		}
		if m.listOffset < 0 {
			m.listOffset = 0
		}

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			if m.conn != nil {
				m.conn.Close()
			}
			return m, tea.Quit
		case tea.KeyEnter:
			switch m.state {
			case stateMenu:
				if m.cursor == 0 {
					m.state = stateSelectingType
					m.cursor = 0
					m.listOffset = 0
				} else {
					docs, err := m.client.listDocuments()
					if err != nil {
						m.err = err
					} else if len(docs) == 0 {
						m.err = fmt.Errorf("no existing documents found")
					} else {
						m.availableDocuments = docs
						m.state = stateSelectingDocument
						m.cursor = 0
						m.listOffset = 0
					}
				}
			case stateSelectingType:
				docType := documentTypes[m.cursor]
				return m, m.createAndOpen(docType)
			case stateSelectingDocument:
				doc := m.availableDocuments[m.cursor]
				return m, m.open(doc.ID)
			case stateChatting:
				m.err = nil
				return m.sendMessage()
			}
		case tea.KeyUp:
			if m.cursor > 0 {
				m.cursor--
				if m.cursor < m.listOffset {
					m.listOffset = m.cursor
				}
			}
		case tea.KeyDown:
			var maxCursor int
			switch m.state {
			case stateMenu:
				maxCursor = 1
			case stateSelectingType:
				maxCursor = len(documentTypes) - 1
			case stateSelectingDocument:
				maxCursor = len(m.availableDocuments) - 1
			}
			if m.cursor < maxCursor {
				m.cursor++
				maxViewable := m.height - 7
				if maxViewable < 1 {
					maxViewable = 1
				}
				if m.cursor >= m.listOffset+maxViewable {
					m.listOffset = m.cursor - maxViewable + 1
				}
			}
		}

	case documentOpenedMsg:
		m.currentDoc = msg.doc
		m.conn = msg.conn
		m.incoming = msg.msgs
		m.messages = nil
		m.state = stateChatting
		m.textarea.Placeholder = "Type a message..."
		m.textarea.Focus()
		m.viewport.SetContent("")
		cmds = append(cmds, waitForMessage(m.incoming))

	case threadMessageMsg:
		m.messages = append(m.messages, domain.ThreadMessage(msg))
		m.viewport.SetContent(m.renderMessages())
		m.viewport.GotoBottom()
		cmds = append(cmds, waitForMessage(m.incoming))

	case connClosedMsg:
		if msg.err != nil {
			m.err = fmt.Errorf("connection closed: %w", msg.err)
		}

	case errMsg:
		m.err = msg.err
	}

	return m, tea.Batch(cmds...)
}

func (m model) View() string {
	var errorView string
	if m.err != nil {
		errorView = errorStyle.Width(m.width).Render(fmt.Sprintf("\nError: %v", m.err))
	}

	switch m.state {
	case stateMenu:
		header := titleStyle.Render("Main Menu")
		options := []string{"New Document", "Continue Document"}
		var optionsView []string
		for i, choice := range options {
			cursor := " "
			if m.cursor == i {
				cursor = ">"
				choice = selectedItemStyle.Render(choice)
			}
			optionsView = append(optionsView, fmt.Sprintf("%s %s", cursorStyle.Render(cursor), choice))
		}
		list := lipgloss.JoinVertical(lipgloss.Left, optionsView...)
		footer := "Press Enter to select, Esc to quit."
		return lipgloss.JoinVertical(lipgloss.Left, header, "", list, "", footer, errorView)

	case stateSelectingType:
		header := titleStyle.Render("Select Document Type")
		var optionsView []string
		for i, choice := range documentTypes {
			cursor := " "
			if m.cursor == i {
				cursor = ">"
				choice = selectedItemStyle.Render(choice)
			}
			optionsView = append(optionsView, fmt.Sprintf("%s %s", cursorStyle.Render(cursor), choice))
		}
		list := lipgloss.JoinVertical(lipgloss.Left, optionsView...)
		footer := "Press Enter to select, Esc to quit."
		return lipgloss.JoinVertical(lipgloss.Left, header, "", list, "", footer, errorView)

	case stateSelectingDocument:
		header := titleStyle.Render("Select Document")

		maxViewable := m.height - 7
		if maxViewable < 1 {
			maxViewable = 1
		}
		start := m.listOffset
		end := start + maxViewable
		if end > len(m.availableDocuments) {
			end = len(m.availableDocuments)
		}

		var optionsView []string
		for i := start; i < end; i++ {
			choice := m.availableDocuments[i]
			cursor := " "
			line := fmt.Sprintf("%s [%s] (%s)", choice.Title, choice.Type, choice.CreatedAt.Format(time.RFC822))
			if m.cursor == i {
				cursor = ">"
				line = selectedItemStyle.Render(line)
			}
			optionsView = append(optionsView, fmt.Sprintf("%s %s", cursorStyle.Render(cursor), line))
		}
		list := lipgloss.JoinVertical(lipgloss.Left, optionsView...)
		footer := "Press Enter to select, Esc to quit."
		return lipgloss.JoinVertical(lipgloss.Left, header, "", list, "", footer, errorView)
	}

	title := "Chat"
	if m.currentDoc != nil {
		title = fmt.Sprintf("%s [%s]", m.currentDoc.Title, m.currentDoc.Type)
	}
	return lipgloss.JoinVertical(
		lipgloss.Left,
		titleStyle.Render(title),
		"",
		m.viewport.View(),
		"",
		errorView,
		m.textarea.View(),
	)
}

// Actions

func (m model) createAndOpen(docType string) tea.Cmd {
	return func() tea.Msg {
		doc, err := m.client.createDocument(docType)
		if err != nil {
			return errMsg{err}
		}
		return m.openMsg(doc)
	}
}

func (m model) open(documentID string) tea.Cmd {
	return func() tea.Msg {
		doc, err := m.client.getDocument(documentID)
		if err != nil {
			return errMsg{err}
		}
		return m.openMsg(doc)
	}
}

func (m model) openMsg(doc *domain.Document) tea.Msg {
	conn, err := m.client.dialChat(doc.ID)
	if err != nil {
		return errMsg{err}
	}

	msgs := make(chan domain.ThreadMessage)
	go func() {
		defer close(msgs)
		for {
			var tm domain.ThreadMessage
			if err := conn.ReadJSON(&tm); err != nil {
				slog.Debug("Chat connection closed", "error", err)
				return
			}
			msgs <- tm
		}
	}()

	return documentOpenedMsg{doc: doc, conn: conn, msgs: msgs}
}

func (m model) sendMessage() (model, tea.Cmd) {
	v := m.textarea.Value()
	if v == "" {
		return m, nil
	}

	if v == "/exit" {
		if m.conn != nil {
			m.conn.Close()
		}
		return m, tea.Quit
	}

	m.textarea.Reset()

	conn := m.conn
	return m, func() tea.Msg {
		if conn == nil {
			return errMsg{fmt.Errorf("not connected")}
		}
		frame := struct {
			Content string `json:"content"`
		}{Content: v}
		if err := conn.WriteJSON(frame); err != nil {
			return errMsg{err}
		}
		return nil
	}
}

func (m model) renderMessages() string {
	var sb strings.Builder
	for _, tm := range m.messages {
		var content string
		switch tm.ContentType {
		case domain.ContentTypeText:
			content = tm.Content
			if m.renderer != nil {
				if rendered, err := m.renderer.Render(tm.Content); err == nil {
					content = rendered
				}
			}
		case domain.ContentTypeToolCall:
			var tc domain.ToolCall
			if err := json.Unmarshal([]byte(tm.Content), &tc); err == nil {
				content = toolStyle.Render(fmt.Sprintf("[Tool Call: %s]", tc.Name))
			} else {
				content = toolStyle.Render("[Tool Call]")
			}
		case domain.ContentTypeToolResult:
			var tr domain.ToolResult
			if err := json.Unmarshal([]byte(tm.Content), &tr); err == nil {
				status := "Success"
				if tr.IsError {
					status = "Error"
				}
				content = toolStyle.Render(fmt.Sprintf("[Tool %s]\n%s", status, tr.Content))
			} else {
				content = toolStyle.Render("[Tool Result]")
			}
		case domain.ContentTypeFile:
			var att domain.Attachment
			if err := json.Unmarshal([]byte(tm.Content), &att); err == nil {
				content = toolStyle.Render(fmt.Sprintf("[Attachment: %s]", att.FileName))
			} else {
				content = toolStyle.Render("[Attachment]")
			}
		default:
			content = tm.Content
		}

		switch tm.Role {
		case domain.RoleUser:
			sb.WriteString(userStyle.Render("User: "))
		case domain.RoleAssistant:
			sb.WriteString(senderStyle.Render("AI: "))
		default:
			sb.WriteString(toolStyle.Render(string(tm.Role) + ": "))
		}
		sb.WriteString("\n")
		sb.WriteString(content)
		sb.WriteString("\n")
	}
	return sb.String()
}

func waitForMessage(ch <-chan domain.ThreadMessage) tea.Cmd {
	return func() tea.Msg {
		tm, ok := <-ch
		if !ok {
			return connClosedMsg{}
		}
		return threadMessageMsg(tm)
	}
}

// --- API client ---

type apiClient struct {
	baseURL string
	userID  string
	http    *http.Client
}

func newAPIClient(baseURL, userID string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		userID:  userID,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *apiClient) do(method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.baseURL+path, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("X-User-ID", c.userID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, strings.TrimSpace(string(b)))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *apiClient) listDocuments() ([]domain.Document, error) {
	var docs []domain.Document
	if err := c.do(http.MethodGet, "/api/documents", nil, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (c *apiClient) createDocument(docType string) (*domain.Document, error) {
	req := struct {
		Title string `json:"title"`
		Type  string `json:"type"`
	}{Title: "Untitled", Type: docType}
	var doc domain.Document
	if err := c.do(http.MethodPost, "/api/documents", req, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (c *apiClient) getDocument(id string) (*domain.Document, error) {
	var doc domain.Document
	if err := c.do(http.MethodGet, "/api/documents/"+id, nil, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (c *apiClient) dialChat(documentID string) (*websocket.Conn, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/api/documents/" + documentID + "/chat"

	hdr := http.Header{}
	hdr.Set("X-User-ID", c.userID)
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), hdr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u.String(), err)
	}
	return conn, nil
}

// --- Main ---

func main() {
	baseURL := os.Getenv("COSCRIBE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	userID := os.Getenv("COSCRIBE_USER")
	if userID == "" {
		userID = "local"
	}

	// Log to a file so slog output does not corrupt the TUI.
	f, err := os.OpenFile("coscribe-cli.log", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
	defer f.Close()

	logLevel := slog.LevelInfo
	if lv := os.Getenv("LOG_LEVEL"); lv != "" {
		switch strings.ToUpper(lv) {
		case "DEBUG":
			logLevel = slog.LevelDebug
		case "INFO":
			logLevel = slog.LevelInfo
		case "WARN":
			logLevel = slog.LevelWarn
		case "ERROR":
			logLevel = slog.LevelError
		}
	}
	handler := slog.NewTextHandler(f, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))

	client := newAPIClient(baseURL, userID)

	p := tea.NewProgram(initialModel(client))
	if _, err := p.Run(); err != nil {
		fmt.Printf("Alas, there's been an error: %v", err)
		os.Exit(1)
	}
}
