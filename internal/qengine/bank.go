// Package qengine is a small SQL-backed question engine: question bank,
// context hierarchy and attempt usages with the adaptive-no-penalty
// behaviour.
package qengine

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mind-engage/mindengage-ilq/internal/db"
	"github.com/mind-engage/mindengage-ilq/internal/engine"
)

type Bank struct{ db *sql.DB }

func NewBank(h *sql.DB) *Bank { return &Bank{db: h} }

func (b *Bank) LoadQuestion(ctx context.Context, id int64) (*engine.Question, error) {
	row := db.Conn(ctx, b.db).QueryRowContext(ctx,
		`SELECT id, category_id, name, qtype, prompt_html, choices_json, answer_key_json, max_mark
		   FROM questions WHERE id=$1`, id)
	var (
		q               engine.Question
		choices, answer string
	)
	if err := row.Scan(&q.ID, &q.CategoryID, &q.Name, &q.Type, &q.PromptHTML, &choices, &answer, &q.MaxMark); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("question %d: %w", id, engine.ErrNotFound)
		}
		return nil, err
	}
	if err := json.Unmarshal([]byte(choices), &q.Choices); err != nil {
		return nil, fmt.Errorf("question %d choices: %w", id, err)
	}
	if err := json.Unmarshal([]byte(answer), &q.AnswerKey); err != nil {
		return nil, fmt.Errorf("question %d answer key: %w", id, err)
	}
	return &q, nil
}

func (b *Bank) PutCategory(ctx context.Context, c engine.Category) error {
	_, err := db.Conn(ctx, b.db).ExecContext(ctx,
		`INSERT INTO question_categories (id, name, context_id) VALUES ($1,$2,$3)
		 ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, context_id=EXCLUDED.context_id`,
		c.ID, c.Name, c.ContextID)
	return err
}

func (b *Bank) PutQuestion(ctx context.Context, q engine.Question) error {
	if q.MaxMark <= 0 {
		q.MaxMark = 1
	}
	if q.Choices == nil {
		q.Choices = []engine.Choice{}
	}
	if q.AnswerKey == nil {
		q.AnswerKey = []string{}
	}
	cj, err := json.Marshal(q.Choices)
	if err != nil {
		return err
	}
	aj, err := json.Marshal(q.AnswerKey)
	if err != nil {
		return err
	}
	_, err = db.Conn(ctx, b.db).ExecContext(ctx,
		`INSERT INTO questions (id, category_id, name, qtype, prompt_html, choices_json, answer_key_json, max_mark)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		 ON CONFLICT (id) DO UPDATE SET category_id=EXCLUDED.category_id, name=EXCLUDED.name,
		   qtype=EXCLUDED.qtype, prompt_html=EXCLUDED.prompt_html, choices_json=EXCLUDED.choices_json,
		   answer_key_json=EXCLUDED.answer_key_json, max_mark=EXCLUDED.max_mark`,
		q.ID, q.CategoryID, q.Name, q.Type, q.PromptHTML, string(cj), string(aj), q.MaxMark)
	return err
}
