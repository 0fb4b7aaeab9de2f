package tui

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/hegde-atri/chaussettes/internal/sshtunnel"
	"github.com/hegde-atri/chaussettes/internal/types"
)

// form field order
const (
	fieldAlias = iota
	fieldHost
	fieldUser
	fieldSSHPort
	fieldSOCKSPort
	fieldKeyPath
	fieldCount
)

var fieldLabels = [fieldCount]string{
	"Alias",
	"Host",
	"User",
	"SSH Port",
	"SOCKS Port",
	"Key Path",
}

// form is the add/edit dialog for one server
type form struct {
	id      string
	editing bool
	inputs  []textinput.Model
	focus   int
	keyInfo string
	err     string
}

func newForm(s types.Server, editing bool) form {
	values := [fieldCount]string{
		s.Alias,
		s.Host,
		s.User,
		strconv.Itoa(s.SSHPort),
		strconv.Itoa(s.SOCKSPort),
		s.KeyPath,
	}
	placeholders := [fieldCount]string{
		"optional",
		"server.example.com",
		"root",
		"22",
		"7070",
		"~/.ssh/id_rsa",
	}

	f := form{id: s.ID, editing: editing, inputs: make([]textinput.Model, fieldCount)}
	for i := range f.inputs {
		in := textinput.New()
		in.Placeholder = placeholders[i]
		in.CharLimit = 256
		in.Width = 40
		in.SetValue(values[i])
		f.inputs[i] = in
	}
	if f.id == "" {
		f.id = types.NewServer().ID
	}
	f.inspectKey()
	return f
}

func (f form) focusCmd() tea.Cmd {
	return f.inputs[f.focus].Focus()
}

func (f form) onLast() bool {
	return f.focus == fieldCount-1
}

func (f *form) next() tea.Cmd {
	return f.setFocus((f.focus + 1) % fieldCount)
}

func (f *form) prev() tea.Cmd {
	return f.setFocus((f.focus + fieldCount - 1) % fieldCount)
}

func (f *form) setFocus(i int) tea.Cmd {
	f.inputs[f.focus].Blur()
	f.focus = i
	return f.inputs[f.focus].Focus()
}

func (f form) update(msg tea.Msg) (form, tea.Cmd) {
	before := f.inputs[fieldKeyPath].Value()

	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	f.err = ""

	if f.inputs[fieldKeyPath].Value() != before {
		f.inspectKey()
	}
	return f, cmd
}

// inspectKey refreshes the one-line summary of the key file
func (f *form) inspectKey() {
	path := strings.TrimSpace(f.inputs[fieldKeyPath].Value())
	if path == "" {
		f.keyInfo = "no key file"
		return
	}
	info, err := sshtunnel.InspectKey(path)
	if err != nil {
		f.keyInfo = "key not readable"
		return
	}
	f.keyInfo = info.String()
}

// server builds a record from the inputs. Unparseable ports become 0 so
// validation rejects them.
func (f form) server() types.Server {
	value := func(i int) string { return strings.TrimSpace(f.inputs[i].Value()) }
	port := func(i int) int {
		n, err := strconv.Atoi(value(i))
		if err != nil {
			return 0
		}
		return n
	}

	keyPath := value(fieldKeyPath)
	if keyPath == "" {
		keyPath = types.DefaultKeyPath()
	}

	return types.Server{
		ID:        f.id,
		Alias:     value(fieldAlias),
		Host:      value(fieldHost),
		User:      value(fieldUser),
		SSHPort:   port(fieldSSHPort),
		SOCKSPort: port(fieldSOCKSPort),
		KeyPath:   types.ExpandHome(keyPath),
	}
}
