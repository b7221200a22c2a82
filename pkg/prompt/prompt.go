// Package prompt loads the role-tagged message segments sent to every model.
package prompt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/minhyannv/prompt-tester/pkg/config"
	loggerpkg "github.com/minhyannv/prompt-tester/pkg/logger"
)

var (
	// ErrNoPromptPath is returned when neither the flag nor the config names a prompt file.
	ErrNoPromptPath = errors.New("prompt file missing; specify one in the config or via the --prompt option")
	// ErrEmptyPrompt is returned when every prompt component is missing or blank.
	ErrEmptyPrompt = errors.New("all prompt components were missing")
)

// Role is the chat role a segment is sent with.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Segment names the prompt component a message was built from.
type Segment string

const (
	SegmentSystem     Segment = "system"
	SegmentAuthorNote Segment = "author_note"
	SegmentUser       Segment = "user"
)

// Message is one role-tagged chunk of the prompt.
type Message struct {
	Segment Segment
	Role    Role
	Content string
}

// file mirrors the prompt document. Pointers distinguish absent keys from empty strings.
type file struct {
	SysPrompt  *string `toml:"sys_prompt" yaml:"sys_prompt"`
	AuxInfo    *string `toml:"aux_info" yaml:"aux_info"`
	AuthorNote *string `toml:"author_note" yaml:"author_note"`
	UserPrompt *string `toml:"user_prompt" yaml:"user_prompt"`
}

// Resolve picks the prompt path: the explicit flag wins over the config default.
func Resolve(flagPath, configPath string) (string, error) {
	if p := strings.TrimSpace(flagPath); p != "" {
		return p, nil
	}
	if p := strings.TrimSpace(configPath); p != "" {
		return p, nil
	}
	return "", ErrNoPromptPath
}

// Load reads a prompt file and assembles its messages in the fixed order
// system, author note, user.
func Load(path string, logger loggerpkg.Logger) ([]Message, error) {
	logger = loggerpkg.OrNop(logger)

	var f file
	if _, _, err := config.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("prompt: %w", err)
	}

	messages := Build(f.SysPrompt, f.AuxInfo, f.AuthorNote, f.UserPrompt, logger)
	logger.Debug("prompt loaded", messages)

	for _, msg := range messages {
		if strings.TrimSpace(msg.Content) != "" {
			return messages, nil
		}
	}
	return nil, fmt.Errorf("prompt: %w", ErrEmptyPrompt)
}

// Build assembles messages from the optional prompt components. The auxiliary
// info is appended to the system prompt on its own line. A blank system
// segment is dropped; author note and user prompt are kept whenever present.
func Build(sysPrompt, auxInfo, authorNote, userPrompt *string, logger loggerpkg.Logger) []Message {
	logger = loggerpkg.OrNop(logger)

	var system string
	if sysPrompt != nil {
		system = *sysPrompt
	} else {
		logger.Warn("The prompt file is missing the system prompt. This may cause unintended behavior.", nil)
	}
	if auxInfo != nil {
		system += "\n" + *auxInfo
	}

	messages := make([]Message, 0, 3)
	if strings.TrimSpace(system) != "" {
		messages = append(messages, Message{Segment: SegmentSystem, Role: RoleSystem, Content: system})
	}
	if authorNote != nil {
		messages = append(messages, Message{Segment: SegmentAuthorNote, Role: RoleUser, Content: *authorNote})
	}
	if userPrompt != nil {
		messages = append(messages, Message{Segment: SegmentUser, Role: RoleUser, Content: *userPrompt})
	} else {
		logger.Warn("The prompt file is missing the user prompt. This may cause unintended behavior.", nil)
	}
	return messages
}
