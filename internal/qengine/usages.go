package qengine

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/url"
	"strconv"
	"time"

	"github.com/mind-engage/mindengage-ilq/internal/db"
	"github.com/mind-engage/mindengage-ilq/internal/engine"
	"github.com/mind-engage/mindengage-ilq/internal/grading"
	"github.com/mind-engage/mindengage-ilq/internal/syncx"
)

var ErrNoBehaviour = errors.New("behaviour not set")

// Usages implements engine.AttemptService over the question_usages,
// question_attempts and question_attempt_steps tables.
type Usages struct {
	db     *sql.DB
	store  *db.Store
	bank   engine.QuestionBank
	grader grading.Grader
	events *syncx.EventRepo
	tmpl   *template.Template
	now    func() time.Time
}

func NewUsages(store *db.Store, bank engine.QuestionBank, grader grading.Grader, events *syncx.EventRepo) *Usages {
	if grader == nil {
		grader = grading.NewDefaultGrader()
	}
	return &Usages{
		db:     store.DB,
		store:  store,
		bank:   bank,
		grader: grader,
		events: events,
		tmpl:   questionTemplate,
		now:    time.Now,
	}
}

func (s *Usages) Create(_ context.Context, owner string, c engine.Context) (*engine.Usage, error) {
	if owner == "" {
		return nil, errors.New("usage owner is required")
	}
	return &engine.Usage{Owner: owner, ContextID: c.ID, CreatedAt: s.now()}, nil
}

func (s *Usages) SetBehaviour(_ context.Context, u *engine.Usage, name string) error {
	if _, ok := behaviours[name]; !ok {
		return fmt.Errorf("unsupported behaviour %q", name)
	}
	u.Behaviour = name
	return nil
}

func (s *Usages) AttachQuestion(_ context.Context, u *engine.Usage, q *engine.Question) (int, error) {
	if u.Behaviour == "" {
		return 0, ErrNoBehaviour
	}
	if q == nil {
		return 0, errors.New("nil question")
	}
	mark := q.MaxMark
	if mark <= 0 {
		mark = 1
	}
	n := len(u.Slots) + 1
	u.Slots = append(u.Slots, &engine.Slot{Number: n, Question: q, MaxMark: mark})
	return n, nil
}

func (s *Usages) StartAll(_ context.Context, u *engine.Usage) error {
	at := s.now()
	for _, sl := range u.Slots {
		if len(sl.Steps) == 0 {
			sl.Steps = append(sl.Steps, engine.Step{State: engine.StateTodo, CreatedAt: at})
		}
	}
	return nil
}

// ApplyPendingActions appends a step to every slot the submitted form
// touches. A slot whose sequence check does not match its step count was
// rendered from stale state and is left alone.
func (s *Usages) ApplyPendingActions(ctx context.Context, u *engine.Usage, form url.Values, at time.Time) error {
	if u.ID == 0 {
		return errors.New("usage not persisted")
	}
	b, ok := behaviours[u.Behaviour]
	if !ok {
		return fmt.Errorf("unsupported behaviour %q", u.Behaviour)
	}
	beh := b(s.grader)
	for _, sl := range u.Slots {
		p := FieldPrefix(u.ID, sl.Number)
		if seq, ok := form[p+":sequencecheck"]; ok && seq[0] != strconv.Itoa(len(sl.Steps)) {
			continue
		}
		if v, ok := form[p+":flagged"]; ok {
			sl.Flagged = v[len(v)-1] == "1"
		}
		a := action{response: responseFor(sl.Question, form, p), submit: form.Has(p + "-submit"), at: at}
		step, err := beh.process(ctx, sl, a)
		if err != nil {
			return err
		}
		if step != nil {
			sl.Steps = append(sl.Steps, *step)
		}
	}
	return nil
}

// responseFor reads the slot's answer fields. It is nil when the form has
// none, so a postback for another question does not clear this one.
func responseFor(q *engine.Question, form url.Values, prefix string) map[string]string {
	if q.Type == "mcq_multi" {
		// the rendered form always sends the hidden marker, even with no box ticked
		if !form.Has(prefix+"choice") && !form.Has(prefix+":answered") {
			return nil
		}
		return map[string]string{"choice": joinChoices(form[prefix+"choice"])}
	}
	if !form.Has(prefix + "answer") {
		return nil
	}
	return map[string]string{"answer": form.Get(prefix + "answer")}
}

// FieldPrefix is the name prefix of every form field of one slot.
func FieldPrefix(usageID int64, slot int) string {
	return "q" + strconv.FormatInt(usageID, 10) + ":" + strconv.Itoa(slot) + "_"
}

func (s *Usages) Load(ctx context.Context, usageID int64) (*engine.Usage, error) {
	conn := db.Conn(ctx, s.db)
	u := &engine.Usage{ID: usageID}
	var created int64
	err := conn.QueryRowContext(ctx,
		`SELECT component, context_id, behaviour, created_at FROM question_usages WHERE id=$1`, usageID).
		Scan(&u.Owner, &u.ContextID, &u.Behaviour, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("usage %d: %w", usageID, engine.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	u.CreatedAt = time.Unix(created, 0)

	type attemptRow struct {
		slot       *engine.Slot
		questionID int64
	}
	var attempts []attemptRow
	rows, err := conn.QueryContext(ctx,
		`SELECT id, slot, question_id, max_mark, flagged FROM question_attempts
		  WHERE usage_id=$1 ORDER BY slot`, usageID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var (
			a       attemptRow
			flagged int
		)
		a.slot = &engine.Slot{}
		if err := rows.Scan(&a.slot.ID, &a.slot.Number, &a.questionID, &a.slot.MaxMark, &flagged); err != nil {
			rows.Close()
			return nil, err
		}
		a.slot.Flagged = flagged != 0
		attempts = append(attempts, a)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// rows are closed before the next query: a sqlite pool holds one connection
	for _, a := range attempts {
		q, err := s.bank.LoadQuestion(ctx, a.questionID)
		if err != nil {
			return nil, fmt.Errorf("usage %d slot %d: %w", usageID, a.slot.Number, err)
		}
		a.slot.Question = q
		if a.slot.Steps, err = s.loadSteps(ctx, a.slot.ID); err != nil {
			return nil, err
		}
		u.Slots = append(u.Slots, a.slot)
	}
	return u, nil
}

func (s *Usages) loadSteps(ctx context.Context, attemptID int64) ([]engine.Step, error) {
	rows, err := db.Conn(ctx, s.db).QueryContext(ctx,
		`SELECT id, seq, state, fraction, submitted, response_json, feedback_json, created_at
		   FROM question_attempt_steps WHERE attempt_id=$1 ORDER BY seq`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var steps []engine.Step
	for rows.Next() {
		var (
			st                 engine.Step
			state              string
			fraction           sql.NullFloat64
			submitted          int
			respJSON, feedJSON string
			created            int64
		)
		if err := rows.Scan(&st.ID, &st.Seq, &state, &fraction, &submitted, &respJSON, &feedJSON, &created); err != nil {
			return nil, err
		}
		st.State = engine.State(state)
		if fraction.Valid {
			f := fraction.Float64
			st.Fraction = &f
		}
		st.Submitted = submitted != 0
		st.CreatedAt = time.Unix(created, 0)
		if err := json.Unmarshal([]byte(respJSON), &st.Response); err != nil {
			return nil, fmt.Errorf("step %d response: %w", st.ID, err)
		}
		if err := json.Unmarshal([]byte(feedJSON), &st.Feedback); err != nil {
			return nil, fmt.Errorf("step %d feedback: %w", st.ID, err)
		}
		steps = append(steps, st)
	}
	return steps, rows.Err()
}

// Persist writes whatever part of u is new: the usage row, its slots and
// any steps appended since the last load. Flags are always rewritten.
func (s *Usages) Persist(ctx context.Context, u *engine.Usage) error {
	return db.WithTx(ctx, s.store, func(ctx context.Context) error {
		conn := db.Conn(ctx, s.db)
		fresh := u.ID == 0
		if fresh {
			if u.Behaviour == "" {
				return ErrNoBehaviour
			}
			if err := conn.QueryRowContext(ctx,
				`INSERT INTO question_usages (component, context_id, behaviour, created_at)
				 VALUES ($1,$2,$3,$4) RETURNING id`,
				u.Owner, u.ContextID, u.Behaviour, u.CreatedAt.Unix()).Scan(&u.ID); err != nil {
				return fmt.Errorf("insert usage: %w", err)
			}
		}
		added := 0
		for _, sl := range u.Slots {
			if sl.ID == 0 {
				if err := conn.QueryRowContext(ctx,
					`INSERT INTO question_attempts (usage_id, slot, question_id, max_mark, flagged)
					 VALUES ($1,$2,$3,$4,$5) RETURNING id`,
					u.ID, sl.Number, sl.Question.ID, sl.MaxMark, boolInt(sl.Flagged)).Scan(&sl.ID); err != nil {
					return fmt.Errorf("insert slot %d: %w", sl.Number, err)
				}
			} else if _, err := conn.ExecContext(ctx,
				`UPDATE question_attempts SET flagged=$1 WHERE id=$2`, boolInt(sl.Flagged), sl.ID); err != nil {
				return fmt.Errorf("update slot %d: %w", sl.Number, err)
			}
			for i := range sl.Steps {
				st := &sl.Steps[i]
				if st.ID != 0 {
					continue
				}
				if err := insertStep(ctx, conn, sl.ID, st); err != nil {
					return fmt.Errorf("slot %d step %d: %w", sl.Number, st.Seq, err)
				}
				added++
			}
		}
		if s.events == nil {
			return nil
		}
		key := strconv.FormatInt(u.ID, 10)
		switch {
		case fresh:
			return s.events.Append(ctx, syncx.TypeUsageStarted, key, usageEvent{Owner: u.Owner, ContextID: u.ContextID, Slots: len(u.Slots)})
		case added > 0:
			return s.events.Append(ctx, syncx.TypeActionsProcessed, key, usageEvent{Owner: u.Owner, ContextID: u.ContextID, Slots: len(u.Slots), Steps: added})
		}
		return nil
	})
}

type usageEvent struct {
	Owner     string `json:"owner"`
	ContextID int64  `json:"context_id"`
	Slots     int    `json:"slots"`
	Steps     int    `json:"steps,omitempty"`
}

func insertStep(ctx context.Context, conn db.Executor, attemptID int64, st *engine.Step) error {
	resp := st.Response
	if resp == nil {
		resp = map[string]string{}
	}
	feedback := st.Feedback
	if feedback == nil {
		feedback = []string{}
	}
	rj, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	fj, err := json.Marshal(feedback)
	if err != nil {
		return err
	}
	var fraction sql.NullFloat64
	if st.Fraction != nil {
		fraction = sql.NullFloat64{Float64: *st.Fraction, Valid: true}
	}
	return conn.QueryRowContext(ctx,
		`INSERT INTO question_attempt_steps (attempt_id, seq, state, fraction, submitted, response_json, feedback_json, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
		attemptID, st.Seq, string(st.State), fraction, boolInt(st.Submitted), string(rj), string(fj), st.CreatedAt.Unix()).Scan(&st.ID)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
