// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FrameGrab - 视频逐秒截帧工具

package api

import (
	"github.com/ZSC714725/framegrab/internal/ffmpeg/skills"
)

// SkillsResponse for API
type SkillsResponse struct {
	FFmpeg struct {
		Version       string          `json:"version"`
		Compiler      string          `json:"compiler"`
		Configuration string          `json:"configuration"`
		Libraries     []SkillsLibrary `json:"libraries"`
	} `json:"ffmpeg"`

	HWAccels []SkillsItem `json:"hwaccels"`

	Codecs struct {
		Video []SkillsCodec `json:"video"`
	} `json:"codecs"`

	Formats struct {
		Demuxers []SkillsItem `json:"demuxers"`
	} `json:"formats"`

	Protocols struct {
		Input []SkillsItem `json:"input"`
	} `json:"protocols"`
}

type SkillsLibrary struct {
	Name     string `json:"name"`
	Compiled string `json:"compiled"`
	Linked   string `json:"linked"`
}

type SkillsItem struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type SkillsCodec struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Encoders []string `json:"encoders"`
	Decoders []string `json:"decoders"`
}

// Only what matters for frame grabbing is exposed: video codecs, demuxers
// and input protocols.
func skillsToAPI(s skills.Skills) SkillsResponse {
	resp := SkillsResponse{}

	resp.FFmpeg.Version = s.FFmpeg.Version
	resp.FFmpeg.Compiler = s.FFmpeg.Compiler
	resp.FFmpeg.Configuration = s.FFmpeg.Configuration
	resp.FFmpeg.Libraries = make([]SkillsLibrary, len(s.FFmpeg.Libraries))
	for i, lib := range s.FFmpeg.Libraries {
		resp.FFmpeg.Libraries[i] = SkillsLibrary{lib.Name, lib.Compiled, lib.Linked}
	}

	resp.HWAccels = make([]SkillsItem, len(s.HWAccels))
	for i, h := range s.HWAccels {
		resp.HWAccels[i] = SkillsItem{h.Id, h.Name}
	}

	resp.Codecs.Video = make([]SkillsCodec, len(s.Codecs.Video))
	for i, c := range s.Codecs.Video {
		resp.Codecs.Video[i] = SkillsCodec{ID: c.Id, Name: c.Name, Encoders: c.Encoders, Decoders: c.Decoders}
	}

	resp.Formats.Demuxers = make([]SkillsItem, len(s.Formats.Demuxers))
	for i, f := range s.Formats.Demuxers {
		resp.Formats.Demuxers[i] = SkillsItem{f.Id, f.Name}
	}

	resp.Protocols.Input = make([]SkillsItem, len(s.Protocols.Input))
	for i, pr := range s.Protocols.Input {
		resp.Protocols.Input[i] = SkillsItem{pr.Id, pr.Name}
	}

	return resp
}
