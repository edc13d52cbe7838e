package chat

import (
	"encoding/json"
	"time"
)

// Message is one line of the conversation. Messages are never edited after
// they are appended.
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	IsUser    bool      `json:"isUser"`
	Timestamp time.Time `json:"timestamp"`
}

// UploadedFile holds the most recently selected spreadsheet for a session.
type UploadedFile struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"-"`
}

func (f *UploadedFile) Size() int {
	if f == nil {
		return 0
	}
	return len(f.Data)
}

// UploadID identifier returned by the backend after an upload.
// Django sends an integer, but a string id is accepted too.
type UploadID string

func (id *UploadID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*id = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*id = UploadID(n.String())
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*id = UploadID(s)
	return nil
}

func (id UploadID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	if json.Valid([]byte(id)) {
		var n json.Number
		if err := json.Unmarshal([]byte(id), &n); err == nil {
			return []byte(n.String()), nil
		}
	}
	return json.Marshal(string(id))
}

// UploadReceipt is the backend's answer to a spreadsheet upload.
type UploadReceipt struct {
	ID         UploadID `json:"id"`
	SessionID  string   `json:"session_id"`
	FileName   string   `json:"file_name"`
	Columns    []string `json:"columns"`
	RowCount   int      `json:"row_count"`
	UploadedAt string   `json:"uploaded_at,omitempty"`
}

// ChatRequest body sent to the backend chat endpoint.
type ChatRequest struct {
	Message      string   `json:"message"`
	SessionID    string   `json:"session_id"`
	Location     string   `json:"location,omitempty"`
	DataUploadID UploadID `json:"data_upload_id,omitempty"`
}

// ChatReply keeps chart and table raw so that a shape we do not expect
// still renders as an empty panel instead of failing the whole reply.
type ChatReply struct {
	Response  string          `json:"response"`
	Location  string          `json:"location,omitempty"`
	Chart     json.RawMessage `json:"chart,omitempty"`
	Table     json.RawMessage `json:"table,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
}

// Chart is the trend series. Values keep their original JSON text.
type Chart struct {
	Years  []json.Number `json:"years"`
	Prices []json.Number `json:"prices"`
	Demand []json.Number `json:"demand"`
}

func (c Chart) Empty() bool {
	return len(c.Years) == 0 && len(c.Prices) == 0 && len(c.Demand) == 0
}

// AnalysisResult is what the results panel shows. It is replaced as a whole
// on every successful reply.
type AnalysisResult struct {
	Summary  string    `json:"summary"`
	Location string    `json:"location,omitempty"`
	Chart    Chart     `json:"chart"`
	Table    Table     `json:"table"`
	At       time.Time `json:"at"`
}

// NewAnalysisResult builds the panel payload from a chat reply.
func NewAnalysisResult(reply ChatReply, at time.Time) *AnalysisResult {
	return &AnalysisResult{
		Summary:  reply.Response,
		Location: reply.Location,
		Chart:    ParseChart(reply.Chart),
		Table:    ParseTable(reply.Table),
		At:       at,
	}
}

// Session is the in-memory state behind one open chat page.
type Session struct {
	ID        string
	Messages  []Message
	Result    *AnalysisResult
	File      *UploadedFile
	CreatedAt time.Time
	LastSeen  time.Time
}

func (s *Session) Append(m Message) {
	s.Messages = append(s.Messages, m)
}

// Clone returns a copy that shares no slices with s.
func (s *Session) Clone() Session {
	out := Session{
		ID:        s.ID,
		CreatedAt: s.CreatedAt,
		LastSeen:  s.LastSeen,
	}
	out.Messages = make([]Message, len(s.Messages))
	copy(out.Messages, s.Messages)
	if s.Result != nil {
		r := *s.Result
		r.Table = s.Result.Table.Clone()
		out.Result = &r
	}
	if s.File != nil {
		f := *s.File
		f.Data = append([]byte(nil), s.File.Data...)
		out.File = &f
	}
	return out
}
