package protocol

import (
	"github.com/teslashibe/go-rescue/pkg/hw"
	"github.com/teslashibe/go-rescue/pkg/survey"
)

// NewCommandMessage wraps one operator key.
func NewCommandMessage(key byte) (*Message, error) {
	return NewMessage(TypeCommand, CommandData{Key: string(rune(key))})
}

func NewConsoleMessage(line string) (*Message, error) {
	return NewMessage(TypeConsole, ConsoleData{Line: line})
}

func NewDisplayMessage(text string) (*Message, error) {
	return NewMessage(TypeDisplay, DisplayData{Text: text})
}

func NewHazardMessage(category string, snap hw.Snapshot) (*Message, error) {
	return NewMessage(TypeHazard, HazardData{Category: category, Snapshot: snap})
}

func NewStatusMessage(status StatusData) (*Message, error) {
	return NewMessage(TypeStatus, status)
}

func NewSurveyMessage(report *survey.Report) (*Message, error) {
	return NewMessage(TypeSurvey, report)
}

func NewPingMessage(id string) (*Message, error) {
	return NewMessage(TypePing, PingData{ID: id})
}

// NewPongMessage answers a ping sent at pingTS. LatencyMs is one-way, as seen
// by the rover's clock.
func NewPongMessage(id string, pingTS, pongTS int64) (*Message, error) {
	return NewMessage(TypePong, PongData{
		ID:        id,
		PingTS:    pingTS,
		PongTS:    pongTS,
		LatencyMs: pongTS - pingTS,
	})
}

// decode parses the payload as T. A message without data yields a zero T.
func decode[T any](m *Message) (*T, error) {
	data := new(T)
	if err := m.ParseData(data); err != nil {
		return nil, err
	}
	return data, nil
}

func (m *Message) GetCommandData() (*CommandData, error) { return decode[CommandData](m) }
func (m *Message) GetConsoleData() (*ConsoleData, error) { return decode[ConsoleData](m) }
func (m *Message) GetDisplayData() (*DisplayData, error) { return decode[DisplayData](m) }
func (m *Message) GetHazardData() (*HazardData, error)   { return decode[HazardData](m) }
func (m *Message) GetStatusData() (*StatusData, error)   { return decode[StatusData](m) }
func (m *Message) GetSurveyData() (*SurveyData, error)   { return decode[SurveyData](m) }
func (m *Message) GetPingData() (*PingData, error)       { return decode[PingData](m) }
func (m *Message) GetPongData() (*PongData, error)       { return decode[PongData](m) }
