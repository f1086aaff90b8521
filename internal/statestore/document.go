package statestore

import (
	"encoding/json"

	"ctxview/internal/model"
)

const (
	keySelection  = "selection"
	keyNavigation = "navigation"
	keyServerURL  = "server_url"
	keyServerPID  = "server_pid"
)

// Document is the shared state document. Keys this package does not know
// about are kept as raw JSON so a rewrite never loses them.
type Document map[string]json.RawMessage

func NewDocument() Document { return Document{} }

// Clone returns a shallow copy; raw values are immutable by convention.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

func (d Document) Has(key string) bool {
	_, ok := d[key]
	return ok
}

func (d Document) Selection() (*model.Selection, bool) {
	raw, ok := d[keySelection]
	if !ok {
		return nil, false
	}
	sel, err := decodeSelection(raw)
	if err != nil {
		return nil, false
	}
	return sel, true
}

func (d Document) SetSelection(sel model.Selection) {
	d.set(keySelection, sel)
}

// DeleteSelection removes the selection and reports whether one was present.
func (d Document) DeleteSelection() bool {
	if _, ok := d[keySelection]; !ok {
		return false
	}
	delete(d, keySelection)
	return true
}

func (d Document) Navigation() (*model.NavigationCommand, bool) {
	raw, ok := d[keyNavigation]
	if !ok {
		return nil, false
	}
	cmd, err := decodeNavigation(raw)
	if err != nil {
		return nil, false
	}
	return cmd, true
}

func (d Document) SetNavigation(cmd model.NavigationCommand) {
	d.set(keyNavigation, cmd)
}

// Server returns the announced presentation server, if any.
func (d Document) Server() (model.ServerInfo, bool) {
	var info model.ServerInfo
	rawURL, ok := d[keyServerURL]
	if !ok || json.Unmarshal(rawURL, &info.URL) != nil || info.URL == "" {
		return model.ServerInfo{}, false
	}
	if rawPID, ok := d[keyServerPID]; ok {
		_ = json.Unmarshal(rawPID, &info.PID)
	}
	return info, true
}

func (d Document) SetServer(info model.ServerInfo) {
	d.set(keyServerURL, info.URL)
	d.set(keyServerPID, info.PID)
}

func (d Document) ClearServer() bool {
	_, hadURL := d[keyServerURL]
	_, hadPID := d[keyServerPID]
	delete(d, keyServerURL)
	delete(d, keyServerPID)
	return hadURL || hadPID
}

func (d Document) set(key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		// only model types reach here and they always marshal
		panic("statestore: marshal " + key + ": " + err.Error())
	}
	d[key] = data
}

// wireSelection uses pointers so that missing fields can be told apart from
// zero values.
type wireSelection struct {
	FilePath     *string  `json:"file_path"`
	StartLine    *int     `json:"start_line"`
	EndLine      *int     `json:"end_line"`
	SelectedText *string  `json:"selected_text"`
	Timestamp    *float64 `json:"timestamp"`
}

func decodeSelection(raw json.RawMessage) (*model.Selection, error) {
	var w *wireSelection
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, err
	}
	if w == nil || w.FilePath == nil || w.StartLine == nil || w.EndLine == nil ||
		w.SelectedText == nil || w.Timestamp == nil {
		return nil, model.ErrInvalidArgument
	}
	sel := &model.Selection{
		FilePath:     *w.FilePath,
		StartLine:    *w.StartLine,
		EndLine:      *w.EndLine,
		SelectedText: *w.SelectedText,
		Timestamp:    *w.Timestamp,
	}
	if err := sel.Validate(); err != nil {
		return nil, err
	}
	return sel, nil
}

type wireNavigation struct {
	Command   *model.CommandKind `json:"command"`
	FilePath  *string            `json:"file_path"`
	Target    *model.Target      `json:"target"`
	Timestamp *float64           `json:"timestamp"`
	Executed  *bool              `json:"executed"`
}

func decodeNavigation(raw json.RawMessage) (*model.NavigationCommand, error) {
	var w *wireNavigation
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, err
	}
	if w == nil || w.Command == nil || w.FilePath == nil || w.Target == nil || w.Timestamp == nil {
		return nil, model.ErrInvalidArgument
	}
	cmd := &model.NavigationCommand{
		Command:   *w.Command,
		FilePath:  *w.FilePath,
		Target:    *w.Target,
		Timestamp: *w.Timestamp,
	}
	if w.Executed != nil {
		cmd.Executed = *w.Executed
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	return cmd, nil
}
