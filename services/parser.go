package services

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"studyai-platform/internal/config"
	"studyai-platform/internal/logger"
)

// Parser turns uploaded files into ordered text chunks suitable for
// concept extraction and embedding
type Parser struct {
	config        *config.Config
	sentenceRegex *regexp.Regexp
	blockRegex    *regexp.Regexp
}

func NewParser(cfg *config.Config) *Parser {
	return &Parser{
		config:        cfg,
		sentenceRegex: regexp.MustCompile(`(?m)([.!?])\s+`),
		blockRegex:    regexp.MustCompile(`\n\n+`),
	}
}

// ExtractText reads raw text from a file, dispatching on extension.
// Supported: pdf, txt, md, xlsx.
func (p *Parser) ExtractText(filePath string) (string, error) {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".pdf":
		return p.extractPDF(filePath)
	case ".txt", ".md":
		raw, err := os.ReadFile(filePath)
		if err != nil {
			return "", fmt.Errorf("failed to read file: %w", err)
		}
		return string(raw), nil
	case ".xlsx":
		return p.extractXLSX(filePath)
	default:
		return "", fmt.Errorf("unsupported file type: %s", filepath.Ext(filePath))
	}
}

func (p *Parser) extractPDF(filePath string) (string, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read PDF file: %w", err)
	}

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("failed to create PDF reader: %w", err)
	}

	var textBuilder strings.Builder
	pages := reader.NumPage()

	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			logger.Warn("failed to extract text from page", "page", i, "error", err)
			continue
		}

		textBuilder.WriteString(text)
		textBuilder.WriteString("\n\n")
	}

	extracted := textBuilder.String()
	if strings.TrimSpace(extracted) == "" {
		return "", fmt.Errorf("no text extracted from PDF")
	}
	return extracted, nil
}

// extractXLSX flattens spreadsheet rows into tab-separated lines,
// one paragraph per sheet
func (p *Parser) extractXLSX(filePath string) (string, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	var textBuilder strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			logger.Warn("failed to read sheet", "sheet", sheet, "error", err)
			continue
		}
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, "\t"))
			if line != "" {
				textBuilder.WriteString(line)
				textBuilder.WriteString("\n")
			}
		}
		textBuilder.WriteString("\n")
	}

	extracted := textBuilder.String()
	if strings.TrimSpace(extracted) == "" {
		return "", fmt.Errorf("no text extracted from workbook")
	}
	return extracted, nil
}

// ChunkText splits raw text into chunks of at least MinChunkSize characters.
// Oversized blocks are re-split on sentence boundaries into pieces around
// SplitSize characters. Non-empty text never yields zero chunks: when every
// block falls below the minimum, the whole text becomes a single chunk.
func (p *Parser) ChunkText(text string) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	var chunks []string
	for _, block := range p.blockRegex.Split(trimmed, -1) {
		block = strings.TrimSpace(block)
		if len(block) < p.config.MinChunkSize {
			continue
		}
		if len(block) > p.config.MaxChunkSize {
			chunks = append(chunks, p.splitBySentence(block)...)
			continue
		}
		chunks = append(chunks, block)
	}

	if len(chunks) == 0 {
		return []string{trimmed}
	}
	return chunks
}

// splitBySentence re-splits an oversized block on sentence boundaries into
// pieces close to the configured split size
func (p *Parser) splitBySentence(block string) []string {
	// Keep terminators attached to their sentences
	marked := p.sentenceRegex.ReplaceAllString(block, "$1\x00")
	sentences := strings.Split(marked, "\x00")

	var pieces []string
	current := new(strings.Builder)

	flush := func() {
		piece := strings.TrimSpace(current.String())
		if len(piece) >= p.config.MinChunkSize {
			pieces = append(pieces, piece)
		}
		current.Reset()
	}

	for _, sentence := range sentences {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		if current.Len() > 0 && current.Len()+len(sentence) > p.config.SplitSize {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sentence)
	}
	flush()

	if len(pieces) == 0 {
		return []string{strings.TrimSpace(block)}
	}
	return pieces
}
