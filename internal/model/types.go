package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Selection is a contiguous line range a human confirmed in the viewer.
type Selection struct {
	FilePath     string  `json:"file_path"`
	StartLine    int     `json:"start_line"`
	EndLine      int     `json:"end_line"`
	SelectedText string  `json:"selected_text"`
	Timestamp    float64 `json:"timestamp"`
}

// Validate reports whether the selection describes a usable line range.
func (s Selection) Validate() error {
	if s.FilePath == "" {
		return fmt.Errorf("%w: file_path is required", ErrInvalidArgument)
	}
	if s.StartLine < 1 {
		return fmt.Errorf("%w: start_line must be >= 1", ErrInvalidArgument)
	}
	if s.EndLine < s.StartLine {
		return fmt.Errorf("%w: end_line must be >= start_line", ErrInvalidArgument)
	}
	return nil
}

type CommandKind string

const (
	CommandGotoLine   CommandKind = "goto_line"
	CommandSearchText CommandKind = "search_text"
	CommandFindSymbol CommandKind = "find_symbol"
)

// UnmarshalText accepts the older find_function spelling for find_symbol.
func (k *CommandKind) UnmarshalText(text []byte) error {
	if string(text) == "find_function" {
		*k = CommandFindSymbol
		return nil
	}
	*k = CommandKind(text)
	return nil
}

func (k CommandKind) Valid() bool {
	switch k {
	case CommandGotoLine, CommandSearchText, CommandFindSymbol:
		return true
	}
	return false
}

// Target is the argument of a navigation command: a line number for goto_line
// and a search string for the other kinds. On the wire it is a JSON number or
// a JSON string respectively.
type Target struct {
	Line int
	Text string
}

func LineTarget(line int) Target    { return Target{Line: line} }
func TextTarget(text string) Target { return Target{Text: text} }

// IsLine reports whether the target carries a line number.
func (t Target) IsLine() bool { return t.Line > 0 }

func (t Target) String() string {
	if t.IsLine() {
		return strconv.Itoa(t.Line)
	}
	return t.Text
}

func (t Target) MarshalJSON() ([]byte, error) {
	if t.IsLine() {
		return []byte(strconv.Itoa(t.Line)), nil
	}
	return json.Marshal(t.Text)
}

func (t *Target) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return fmt.Errorf("%w: target is null", ErrInvalidArgument)
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Target{Text: s}
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("%w: target must be a number or string", ErrInvalidArgument)
	}
	line, err := n.Int64()
	if err != nil {
		return fmt.Errorf("%w: target line must be an integer", ErrInvalidArgument)
	}
	*t = Target{Line: int(line)}
	return nil
}

// NavigationCommand asks the viewer to move to a location in a file.
type NavigationCommand struct {
	Command   CommandKind `json:"command"`
	FilePath  string      `json:"file_path"`
	Target    Target      `json:"target"`
	Timestamp float64     `json:"timestamp"`
	Executed  bool        `json:"executed"`
}

// Validate checks that the command kind and its target agree.
func (c NavigationCommand) Validate() error {
	if !c.Command.Valid() {
		return fmt.Errorf("%w: unknown navigation command %q", ErrInvalidArgument, c.Command)
	}
	if c.FilePath == "" {
		return fmt.Errorf("%w: file_path is required", ErrInvalidArgument)
	}
	switch c.Command {
	case CommandGotoLine:
		if !c.Target.IsLine() {
			return fmt.Errorf("%w: goto_line needs a line >= 1", ErrInvalidArgument)
		}
	default:
		if c.Target.IsLine() || c.Target.Text == "" {
			return fmt.Errorf("%w: %s needs a non-empty text target", ErrInvalidArgument, c.Command)
		}
	}
	return nil
}

// DirEntry is one child of a listed directory.
type DirEntry struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	IsDir bool   `json:"is_dir"`
	Size  int64  `json:"size"`
}

// FileContent is the result of reading a file through the gateway. Content is
// empty for binary files.
type FileContent struct {
	Path     string `json:"path"`
	Content  string `json:"content,omitempty"`
	MimeType string `json:"mime_type"`
	IsText   bool   `json:"is_text"`
	Size     int64  `json:"size"`
	DocType  string `json:"doc_type"`
}

// RenderResult describes a successful LaTeX compilation.
type RenderResult struct {
	Source  string `json:"source"`
	PDFPath string `json:"pdf_path"`
}

// ServerInfo is the announcement a running viewer leaves in the state document.
type ServerInfo struct {
	URL string `json:"server_url"`
	PID int    `json:"server_pid"`
}

// Timestamp converts t to the fractional Unix seconds used on disk.
func Timestamp(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// TimeOf is the inverse of Timestamp.
func TimeOf(ts float64) time.Time {
	return time.Unix(0, int64(ts*float64(time.Second)))
}
