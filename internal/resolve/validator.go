// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FrameGrab - 视频逐秒截帧工具

package resolve

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ZSC714725/framegrab/internal/capture"
)

// YouTubeAllow matches the page URLs the YouTube resolvers accept when no
// allow list is configured.
var YouTubeAllow = []string{
	`^https?://(www\.|m\.|music\.)?youtube\.com/(watch\?|shorts/|live/|embed/)`,
	`^https?://youtu\.be/[A-Za-z0-9_-]+`,
	`^https?://(www\.)?youtube-nocookie\.com/embed/`,
}

// Validator decides whether a URL may be resolved
type Validator interface {
	Validate(url string) error
}

type validator struct {
	allow []*regexp.Regexp
	block []*regexp.Regexp
}

// NewValidator compiles allow and block expressions. Empty expressions are
// ignored; an empty allow list lets everything through that is not blocked.
func NewValidator(allow, block []string) (Validator, error) {
	v := &validator{}
	var err error

	if v.allow, err = compile("allow", allow); err != nil {
		return nil, err
	}
	if v.block, err = compile("block", block); err != nil {
		return nil, err
	}
	return v, nil
}

func compile(kind string, exps []string) ([]*regexp.Regexp, error) {
	var res []*regexp.Regexp
	for _, exp := range exps {
		exp = strings.TrimSpace(exp)
		if exp == "" {
			continue
		}
		re, err := regexp.Compile(exp)
		if err != nil {
			return nil, fmt.Errorf("invalid %s expression '%s': %w", kind, exp, err)
		}
		res = append(res, re)
	}
	return res, nil
}

func (v *validator) Validate(url string) error {
	for _, e := range v.block {
		if e.MatchString(url) {
			return fmt.Errorf("%w: %s is blocked", capture.ErrUnsupportedURL, url)
		}
	}
	if len(v.allow) == 0 {
		return nil
	}
	for _, e := range v.allow {
		if e.MatchString(url) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", capture.ErrUnsupportedURL, url)
}
