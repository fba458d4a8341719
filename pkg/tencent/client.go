package tencent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/profile"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/regions"
	tmt "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/tmt/v20180321"

	"lyrics-backend/pkg/lyrics"
)

var logger = log.With().Str("component", "tencent-tmt").Logger()

// ErrSameLanguage 原文已经是目标语言
var ErrSameLanguage = errors.New("source text already in target language")

// 单次批量翻译的字符上限（接口限制 6000）
const maxBatchChars = 2000

// tmtAPI 用到的机器翻译接口
type tmtAPI interface {
	LanguageDetectWithContext(ctx context.Context, request *tmt.LanguageDetectRequest) (*tmt.LanguageDetectResponse, error)
	TextTranslateBatchWithContext(ctx context.Context, request *tmt.TextTranslateBatchRequest) (*tmt.TextTranslateBatchResponse, error)
}

// Translator 腾讯云机器翻译
type Translator struct {
	api    tmtAPI
	target string
}

// NewTranslator 创建翻译客户端，region 为空时使用广州
func NewTranslator(secretID, secretKey, region, target string) (*Translator, error) {
	credential := common.NewCredential(secretID, secretKey)

	cpf := profile.NewClientProfile()
	cpf.HttpProfile.ReqMethod = "POST"
	cpf.HttpProfile.ReqTimeout = 10

	if region == "" {
		region = regions.Guangzhou
	}
	client, err := tmt.NewClient(credential, region, cpf)
	if err != nil {
		log.Error().Err(err).Msg("new tencent client error")
		return nil, err
	}
	return newTranslator(client, target), nil
}

func newTranslator(api tmtAPI, target string) *Translator {
	if target == "" {
		target = "zh"
	}
	return &Translator{api: api, target: target}
}

// Translate 批量翻译，返回与输入等长的结果
func (t *Translator) Translate(ctx context.Context, texts []string) ([]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	source, err := t.detect(ctx, strings.Join(texts, "\n"))
	if err != nil {
		return nil, err
	}
	if source == t.target {
		return nil, ErrSameLanguage
	}

	out := make([]string, 0, len(texts))
	for _, batch := range batches(texts, maxBatchChars) {
		request := tmt.NewTextTranslateBatchRequest()
		request.Source = common.StringPtr(source)
		request.Target = common.StringPtr(t.target)
		request.ProjectId = common.Int64Ptr(0)
		request.SourceTextList = common.StringPtrs(batch)

		response, err := t.api.TextTranslateBatchWithContext(ctx, request)
		if err != nil {
			return nil, fmt.Errorf("failed to translate batch: %w", err)
		}
		if response.Response == nil || len(response.Response.TargetTextList) != len(batch) {
			return nil, fmt.Errorf("translation returned unexpected result count")
		}
		for _, s := range response.Response.TargetTextList {
			if s == nil {
				out = append(out, "")
				continue
			}
			out = append(out, *s)
		}
	}
	return out, nil
}

func (t *Translator) detect(ctx context.Context, text string) (string, error) {
	if r := []rune(text); len(r) > 200 {
		text = string(r[:200])
	}
	request := tmt.NewLanguageDetectRequest()
	request.Text = common.StringPtr(text)
	request.ProjectId = common.Int64Ptr(0)

	response, err := t.api.LanguageDetectWithContext(ctx, request)
	if err != nil {
		return "", fmt.Errorf("failed to detect language: %w", err)
	}
	if response.Response == nil || response.Response.Lang == nil {
		return "", errors.New("language detection returned no result")
	}
	return *response.Response.Lang, nil
}

// TranslateDocument 为没有翻译的启用行写入 "tr:<目标语言>" 附件，返回翻译的行数。
// 作词作曲等制作人员行不翻译
func (t *Translator) TranslateDocument(ctx context.Context, doc *lyrics.Document) (int, error) {
	var (
		indexes []int
		texts   []string
	)
	for i, line := range doc.Lines() {
		if !line.Enabled || strings.TrimSpace(line.Content) == "" || lyrics.IsCredit(line.Content) {
			continue
		}
		if _, ok := line.Translation(); ok {
			continue
		}
		indexes = append(indexes, i)
		texts = append(texts, line.Content)
	}
	if len(texts) == 0 {
		return 0, nil
	}

	translated, err := t.Translate(ctx, texts)
	if err != nil {
		return 0, err
	}

	tag := lyrics.TranslationTag(t.target)
	n := 0
	for k, i := range indexes {
		if s := strings.TrimSpace(translated[k]); s != "" {
			doc.Line(i).Attach(tag, lyrics.PlainText(s))
			n++
		}
	}
	logger.Info().Int("lines", n).Str("target", t.target).Msg("Translated lyrics")
	return n, nil
}

func batches(texts []string, limit int) [][]string {
	var (
		out   [][]string
		cur   []string
		count int
	)
	for _, s := range texts {
		n := len([]rune(s))
		if len(cur) > 0 && count+n > limit {
			out = append(out, cur)
			cur, count = nil, 0
		}
		cur = append(cur, s)
		count += n
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}
