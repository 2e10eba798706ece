package pipeline

import (
	"context"

	"github.com/matsen/paperlib/internal/config"
	"github.com/matsen/paperlib/internal/note"
	"github.com/matsen/paperlib/internal/storage"
	"github.com/matsen/paperlib/internal/web"
	"go.uber.org/zap"
)

// processArticle synthesizes an HTML article and writes its note.
func (p *Processor) processArticle(ctx context.Context, t Target, fetched web.Result, log *zap.Logger) (Result, error) {
	fail := func(stage Stage, err error) (Result, error) {
		return Result{Kind: "article"}, &StageError{Identifier: t.Input, Stage: stage, Err: err}
	}

	article := fetched.Article
	log.Info("fetched article", zap.String("title", article.Title), zap.Int("chars", len(fetched.Content)))

	syn, err := p.c.Synthesizer.Article(ctx, fetched.Content, article)
	if err != nil {
		return fail(StageSynthesis, err)
	}

	now := p.now()
	content, err := p.notes.Article(note.ArticleNote{Article: article, Synthesis: syn, Content: fetched.Content})
	if err != nil {
		return fail(StageNote, err)
	}
	notePath, err := note.Save(config.ArticlesPath(p.vault), note.ArticleName(article, now), content)
	if err != nil {
		return fail(StageNote, err)
	}

	article.NotePath = p.relPath(notePath)
	article.Source = t.Source
	article.ProcessedAt = now.UTC()

	if _, err := storage.UpsertArticle(config.ArticlesIndexPath(p.vault), article); err != nil {
		return fail(StageLibrary, err)
	}
	if p.c.Index != nil {
		if err := p.c.Index.UpsertArticle(article); err != nil {
			log.Warn("updating article index", zap.Error(err))
		}
	}

	return Result{
		Kind:     "article",
		Title:    article.Title,
		NotePath: article.NotePath,
		CostUSD:  syn.CostUSD,
	}, nil
}
