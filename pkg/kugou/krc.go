package kugou

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"lyrics-backend/pkg/lyrics"
)

var (
	krcMagic = []byte("krc1")
	krcKey   = []byte{64, 71, 97, 119, 94, 50, 116, 71, 81, 54, 49, 45, 206, 210, 110, 105}

	krcLinePattern    = regexp.MustCompile(`^\[(\d+),(\d+)\](.*)$`)
	krcSegmentPattern = regexp.MustCompile(`<(\d+),(\d+),\d+>([^<]*)`)
	krcIDTagPattern   = regexp.MustCompile(`^\[([A-Za-z]+):(.*)\]$`)
)

// ErrInvalidKRC KRC 数据格式错误
var ErrInvalidKRC = errors.New("invalid krc data")

// DecryptKRC 解密 KRC：去掉 "krc1" 头，按密钥异或，再 zlib 解压
func DecryptKRC(data []byte) (string, error) {
	if !bytes.HasPrefix(data, krcMagic) {
		return "", ErrInvalidKRC
	}
	payload := make([]byte, len(data)-len(krcMagic))
	for i, b := range data[len(krcMagic):] {
		payload[i] = b ^ krcKey[i%len(krcKey)]
	}

	r, err := zlib.NewReader(bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidKRC, err)
	}
	defer r.Close()

	text, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidKRC, err)
	}
	return string(text), nil
}

// languageHeader [language:...] 中 base64 编码的 JSON
type languageHeader struct {
	Content []struct {
		Language     int        `json:"language"`
		Type         int        `json:"type"`
		LyricContent [][]string `json:"lyricContent"`
	} `json:"content"`
	Version int `json:"version"`
}

// 1 为翻译，0 为音译
const languageTypeTranslation = 1

// ParseKRC 解析 KRC 文本，逐字时间写入 tt 附件，翻译写入 tr 附件
func ParseKRC(text string) (*lyrics.Document, error) {
	doc := lyrics.New()
	var (
		lines       []lyrics.Line
		translation []string
	)

	for _, raw := range strings.Split(text, "\n") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}

		if m := krcLinePattern.FindStringSubmatch(raw); m != nil {
			start, _ := strconv.Atoi(m[1])
			dur, _ := strconv.Atoi(m[2])
			if line, ok := parseKRCLine(float64(start)/1000, float64(dur)/1000, m[3]); ok {
				lines = append(lines, line)
			}
			continue
		}

		m := krcIDTagPattern.FindStringSubmatch(raw)
		if m == nil {
			continue
		}
		key, value := strings.ToLower(m[1]), strings.TrimSpace(m[2])
		switch key {
		case "language":
			translation = parseLanguage(value)
		case "offset":
			if ms, err := strconv.Atoi(value); err == nil {
				doc.Offset = float64(ms) / 1000
			}
		case "ti", "ar", "al", "by":
			if value != "" {
				doc.IDTags[lyrics.IDTag(key)] = value
			}
		}
	}

	if len(lines) == 0 {
		return nil, lyrics.ErrNoLines
	}

	// 翻译按行序对应
	for i := range lines {
		if i >= len(translation) {
			break
		}
		if tr := strings.TrimSpace(translation[i]); tr != "" {
			lines[i].Attach(lyrics.TagTranslation, lyrics.PlainText(tr))
		}
	}
	doc.AddLines(lines...)
	return doc, nil
}

func parseKRCLine(start, dur float64, body string) (lyrics.Line, bool) {
	segments := krcSegmentPattern.FindAllStringSubmatch(body, -1)
	if len(segments) == 0 {
		return lyrics.Line{}, false
	}

	var (
		content strings.Builder
		tags    []lyrics.InlineTag
		index   int
	)
	for _, seg := range segments {
		offset, _ := strconv.Atoi(seg[1])
		tags = append(tags, lyrics.InlineTag{Index: index, Offset: float64(offset) / 1000})
		content.WriteString(seg[3])
		index += utf8.RuneCountInString(seg[3])
	}

	line := lyrics.NewLine(content.String(), start)
	line.Attach(lyrics.TagTimeTag, &lyrics.TimeTags{Tags: tags, Duration: dur})
	return line, true
}

func parseLanguage(value string) []string {
	data, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil
	}
	var header languageHeader
	if err := json.Unmarshal(data, &header); err != nil {
		return nil
	}
	for _, c := range header.Content {
		if c.Type != languageTypeTranslation {
			continue
		}
		out := make([]string, len(c.LyricContent))
		for i, words := range c.LyricContent {
			out[i] = strings.Join(words, "")
		}
		return out
	}
	return nil
}
