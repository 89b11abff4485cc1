// Package directive maps learned segment attributes through a fixed decision
// table into structured content-generation directives: channel, timing, tone,
// and messaging guidance for a downstream generative system.
package directive

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

//go:embed blocks.json
var blocksJSON []byte

// Block is one behavioral messaging template.
type Block struct {
	BehavioralSummary    string   `json:"behavioral_summary"`
	MotivationalTriggers []string `json:"motivational_triggers"`
	Tone                 string   `json:"tone"`
	MessagingApproach    string   `json:"messaging_approach"`
	WhatResonates        string   `json:"what_resonates"`
	WhatToAvoid          string   `json:"what_to_avoid"`
}

// ChannelConstraints bound what a message on a delivery surface may contain.
type ChannelConstraints struct {
	MaxTitleChars     int    `json:"max_title_chars"`
	MaxBodyChars      int    `json:"max_body_chars"`
	SupportsRichMedia bool   `json:"supports_rich_media"`
	Notes             string `json:"notes"`
}

// blockTable is the static template data loaded once at startup.
type blockTable struct {
	BehavioralCombinations map[string]Block              `json:"behavioral_combinations"`
	ChannelConstraints     map[string]ChannelConstraints `json:"channel_constraints"`
}

var blocks = mustLoadBlocks()

func mustLoadBlocks() blockTable {
	var t blockTable
	if err := json.Unmarshal(blocksJSON, &t); err != nil {
		panic(fmt.Sprintf("directive: parse embedded blocks: %v", err))
	}
	return t
}
