// Package conversation reads chat transcripts supplied on the command line.
//
// A transcript is either a JSON array of messages or an object carrying an
// optional system prompt next to the messages:
//
//	[{"role": "user", "content": "Hi"}]
//	{"system": "Be brief.", "messages": [{"role": "user", "content": "Hi"}]}
//
// Hand-edited files often have trailing commas, single quotes or unquoted
// keys; those are repaired before decoding.
package conversation

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/childreth/Olly/internal/utils"
	"github.com/childreth/Olly/providers/ai"
)

// ErrEmpty is returned for a transcript without messages.
var ErrEmpty = errors.New("conversation has no messages")

// Transcript is a decoded conversation.
type Transcript struct {
	System   string       `json:"system,omitempty"`
	Messages []ai.Message `json:"messages"`
}

// Load reads and parses the transcript at path.
func Load(path string) (Transcript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Transcript{}, fmt.Errorf("read conversation: %w", err)
	}
	transcript, err := Parse(string(data))
	if err != nil {
		return Transcript{}, fmt.Errorf("%s: %w", path, err)
	}
	return transcript, nil
}

// Parse decodes content, repairing malformed JSON when plain decoding fails.
func Parse(content string) (Transcript, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Transcript{}, ErrEmpty
	}

	transcript, err := decode(content)
	if err != nil {
		repaired, repairErr := utils.RepairJSON(content)
		if repairErr != nil {
			return Transcript{}, fmt.Errorf("invalid conversation JSON: %w (repair failed: %v)", err, repairErr)
		}
		if transcript, err = decode(repaired); err != nil {
			return Transcript{}, fmt.Errorf("invalid conversation JSON after repair: %w", err)
		}
	}

	if err := transcript.validate(); err != nil {
		return Transcript{}, err
	}
	return transcript, nil
}

func decode(content string) (Transcript, error) {
	var transcript Transcript
	if strings.HasPrefix(content, "[") {
		err := json.Unmarshal([]byte(content), &transcript.Messages)
		return transcript, err
	}
	err := json.Unmarshal([]byte(content), &transcript)
	return transcript, err
}

// validate folds system messages into System and checks roles.
func (t *Transcript) validate() error {
	messages := t.Messages[:0]
	var system []string
	if t.System != "" {
		system = append(system, t.System)
	}
	for i, message := range t.Messages {
		switch message.Role {
		case ai.RoleSystem:
			if text := message.Content.PlainText(); text != "" {
				system = append(system, text)
			}
		case ai.RoleUser, ai.RoleAssistant:
			messages = append(messages, message)
		default:
			return fmt.Errorf("message %d: unsupported role %q", i, message.Role)
		}
	}
	if len(messages) == 0 {
		return ErrEmpty
	}
	t.Messages = messages
	t.System = strings.Join(system, "\n\n")
	return nil
}

// Request builds a chat request for provider from the transcript.
func (t Transcript) Request(provider ai.ProviderName) ai.ChatRequest {
	return ai.ChatRequest{
		Provider: provider,
		System:   t.System,
		Messages: append([]ai.Message(nil), t.Messages...),
	}
}
