package app

import (
	"strings"

	"lyrics-backend/pkg/lyrics"
)

const (
	TextUpcoming = "♪ 即将开始... ♪"
	TextFinished = "♪ 歌曲结束 ♪"
	TextNoMusic  = "No music playing..."

	// 最后一行之后多久算歌曲结束（文档没有时长时使用）
	finishGrace = 5.0
)

// 特殊的显示帧编号，普通歌词行使用行号
const (
	frameNone     = -3 // 没有歌词，强制下一次刷新
	frameUpcoming = -1
	frameFinished = -2
)

// frame 某一时刻应显示的内容
type frame struct {
	index int
	text  string
}

// resolveFrame 根据播放位置（已加上提前量）确定显示内容
func resolveFrame(doc *lyrics.Document, position float64) frame {
	if doc == nil || doc.Len() == 0 {
		return frame{index: frameNone}
	}

	if finished(doc, position) {
		return frame{index: frameFinished, text: TextFinished}
	}

	line, idx := doc.ActiveLine(position)
	if line == nil {
		return frame{index: frameUpcoming, text: TextUpcoming}
	}
	return frame{index: idx, text: formatLine(line)}
}

func finished(doc *lyrics.Document, position float64) bool {
	if doc.Length > 0 {
		return position >= doc.Length
	}
	lines := doc.Lines()
	return position > lines[len(lines)-1].Position-doc.Offset+finishGrace
}

// formatLine 歌词一行，有翻译时翻译放在第二行
func formatLine(line *lyrics.Line) string {
	text := line.Content
	if tr, ok := line.Translation(); ok && strings.TrimSpace(tr) != "" {
		text += "\n" + tr
	}
	return text
}
