package music

import (
	"math"
	"strings"
	"unicode"

	"lyrics-backend/pkg/lyrics"
)

// NormalizeString 标准化字符串（转小写，去空白和常见标点）
func NormalizeString(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || unicode.IsPunct(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, s)
}

// ContainsIgnoreCase 忽略大小写和空格的包含关系检查
func ContainsIgnoreCase(s1, s2 string) bool {
	norm1, norm2 := NormalizeString(s1), NormalizeString(s2)
	if norm1 == "" || norm2 == "" {
		return false
	}
	return strings.Contains(norm1, norm2) || strings.Contains(norm2, norm1)
}

// 时长误差在 maxDurationDiff 秒以内视为同一首
const maxDurationDiff = 3.0

// Quality 评估歌词与请求的匹配程度，分数越高越好
func Quality(doc *lyrics.Document, req SearchRequest) float64 {
	if doc == nil || doc.Len() == 0 {
		return 0
	}

	score := matchScore(doc.IDTags[lyrics.IDTitle], req.Title) +
		matchScore(doc.IDTags[lyrics.IDArtist], req.Artist)

	if req.Duration > 0 && doc.Length > 0 {
		diff := math.Abs(doc.Length - req.Duration)
		if diff <= maxDurationDiff {
			score += 1
		} else {
			score += math.Max(0, 1-diff/30)
		}
	}

	if doc.HasTranslation() {
		score += 0.3
	}
	if doc.HasTimeTags() {
		score += 0.2
	}
	if doc.Len() < 5 {
		score -= 0.5
	}
	return score
}

func matchScore(got, want string) float64 {
	if want == "" {
		return 0.5
	}
	if NormalizeString(got) == NormalizeString(want) {
		return 1
	}
	if ContainsIgnoreCase(got, want) {
		return 0.6
	}
	return 0
}
