package session

import (
	"math"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

type OutputSize string

const (
	OutputShort  OutputSize = "short"
	OutputMedium OutputSize = "medium"
	OutputLong   OutputSize = "long"
)

func ParseOutputSize(s string) (OutputSize, bool) {
	switch OutputSize(strings.ToLower(strings.TrimSpace(s))) {
	case OutputShort:
		return OutputShort, true
	case OutputMedium:
		return OutputMedium, true
	case OutputLong:
		return OutputLong, true
	}
	return "", false
}

// Control names looked up in a Controls source.
const (
	ControlOutputSize     = "output-size"
	ControlShowPages      = "show-pages"
	ControlModel          = "model"
	ControlChangeLength   = "change-length"
	ControlSlider         = "slider"
	ControlRagDoc         = "rag-doc"
	ControlPromptEnhancer = "prompt-enhancer"
)

// Controls is where request options come from: page widgets, CLI flags or a
// config file. A control that is absent reports ok == false.
type Controls interface {
	Lookup(name string) (value string, ok bool)
	SelectedFiles() []string
}

// MapControls is a Controls backed by a map.
type MapControls struct {
	Values map[string]string
	Files  []string
}

func (m MapControls) Lookup(name string) (string, bool) {
	v, ok := m.Values[name]
	return v, ok
}

func (m MapControls) SelectedFiles() []string {
	return m.Files
}

// RequestOptions is the enumerated set of options carried by a start or
// continue request.
type RequestOptions struct {
	Files          []string
	OutputSize     OutputSize
	ShowPages      bool
	Model          string
	ChangeLength   bool
	SliderValue    float64
	RagDocSlider   bool
	PromptEnhancer bool
}

// DefaultOptions is the defaults table used whenever a control is missing or
// holds a value that does not parse.
func DefaultOptions() RequestOptions {
	return RequestOptions{
		Files:          []string{},
		OutputSize:     OutputMedium,
		ShowPages:      false,
		Model:          "gemini-2.0-flash",
		ChangeLength:   false,
		SliderValue:    0.8,
		RagDocSlider:   false,
		PromptEnhancer: true,
	}
}

// ExtractOptions reads every control from c, falling back to DefaultOptions
// per field. It never fails.
func ExtractOptions(c Controls) RequestOptions {
	o := DefaultOptions()
	if c == nil {
		return o
	}
	logger := log.With().Str("component", "session").Logger()

	if v, ok := c.Lookup(ControlOutputSize); ok {
		if size, ok := ParseOutputSize(v); ok {
			o.OutputSize = size
		} else {
			logger.Debug().Str("value", v).Msg("unknown output size, using default")
		}
	}
	if v, ok := c.Lookup(ControlModel); ok && strings.TrimSpace(v) != "" {
		o.Model = strings.TrimSpace(v)
	}
	if v, ok := c.Lookup(ControlSlider); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			o.SliderValue = f
		} else {
			logger.Debug().Str("value", v).Msg("invalid slider value, using default")
		}
	}
	o.ShowPages = lookupBool(c, ControlShowPages, o.ShowPages)
	o.ChangeLength = lookupBool(c, ControlChangeLength, o.ChangeLength)
	o.RagDocSlider = lookupBool(c, ControlRagDoc, o.RagDocSlider)
	o.PromptEnhancer = lookupBool(c, ControlPromptEnhancer, o.PromptEnhancer)

	for _, f := range c.SelectedFiles() {
		if f = strings.TrimSpace(f); f != "" {
			o.Files = append(o.Files, f)
		}
	}
	return o
}

func lookupBool(c Controls, name string, def bool) bool {
	v, ok := c.Lookup(name)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return b
}

// Request is the wire payload of start_processing and send_chat_message.
type Request struct {
	Input          string     `json:"input" yaml:"input"`
	PDFFiles       []string   `json:"pdfFiles,omitempty" yaml:"pdfFiles,omitempty"`
	OutputSize     OutputSize `json:"output_size" yaml:"output_size"`
	ShowPages      bool       `json:"show_pages_checkbox" yaml:"show_pages_checkbox"`
	Model          string     `json:"choosen_model" yaml:"choosen_model"`
	ChangeLength   bool       `json:"change_length_checkbox" yaml:"change_length_checkbox"`
	SliderValue    float64    `json:"slider_value" yaml:"slider_value"`
	RagDocSlider   bool       `json:"ragDocSlider" yaml:"ragDocSlider"`
	PromptEnhancer bool       `json:"prompt_enhancer" yaml:"prompt_enhancer"`
	ContentID      string     `json:"contentId,omitempty" yaml:"contentId,omitempty"`
}

func (o RequestOptions) Request(input, contentID string) Request {
	return Request{
		Input:          input,
		PDFFiles:       o.Files,
		OutputSize:     o.OutputSize,
		ShowPages:      o.ShowPages,
		Model:          o.Model,
		ChangeLength:   o.ChangeLength,
		SliderValue:    o.SliderValue,
		RagDocSlider:   o.RagDocSlider,
		PromptEnhancer: o.PromptEnhancer,
		ContentID:      contentID,
	}
}
