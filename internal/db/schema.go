package db

const schemaSQLite = `
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS contexts (
  id INTEGER PRIMARY KEY,
  contextlevel INTEGER NOT NULL,
  instance_id INTEGER NOT NULL,
  path TEXT NOT NULL DEFAULT '',           -- "/1/5/12", root first
  UNIQUE (contextlevel, instance_id)
);

CREATE TABLE IF NOT EXISTS courses (
  id INTEGER PRIMARY KEY,
  shortname TEXT NOT NULL,
  fullname TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS course_modules (
  id INTEGER PRIMARY KEY,
  course_id INTEGER NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
  name TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS question_categories (
  id INTEGER PRIMARY KEY,
  name TEXT NOT NULL,
  context_id INTEGER NOT NULL REFERENCES contexts(id)
);

CREATE TABLE IF NOT EXISTS questions (
  id INTEGER PRIMARY KEY,
  category_id INTEGER NOT NULL REFERENCES question_categories(id),
  name TEXT NOT NULL,
  qtype TEXT NOT NULL,
  prompt_html TEXT NOT NULL DEFAULT '',
  choices_json TEXT NOT NULL DEFAULT '[]',
  answer_key_json TEXT NOT NULL DEFAULT '[]',
  max_mark REAL NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS question_usages (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  component TEXT NOT NULL,
  context_id INTEGER NOT NULL,
  behaviour TEXT NOT NULL,
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS question_attempts (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  usage_id INTEGER NOT NULL REFERENCES question_usages(id) ON DELETE CASCADE,
  slot INTEGER NOT NULL,
  question_id INTEGER NOT NULL,
  max_mark REAL NOT NULL,
  flagged INTEGER NOT NULL DEFAULT 0,
  UNIQUE (usage_id, slot)
);

CREATE TABLE IF NOT EXISTS question_attempt_steps (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  attempt_id INTEGER NOT NULL REFERENCES question_attempts(id) ON DELETE CASCADE,
  seq INTEGER NOT NULL,
  state TEXT NOT NULL,
  fraction REAL,
  submitted INTEGER NOT NULL DEFAULT 0,
  response_json TEXT NOT NULL DEFAULT '{}',
  feedback_json TEXT NOT NULL DEFAULT '[]',
  created_at INTEGER NOT NULL,
  UNIQUE (attempt_id, seq)
);

CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  username TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL DEFAULT '',
  role TEXT NOT NULL DEFAULT 'student'
);

CREATE TABLE IF NOT EXISTS role_assignments (
  user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  context_id INTEGER NOT NULL REFERENCES contexts(id) ON DELETE CASCADE,
  role TEXT NOT NULL,
  PRIMARY KEY (user_id, context_id)
);

CREATE TABLE IF NOT EXISTS enrolments (
  user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  course_id INTEGER NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
  PRIMARY KEY (user_id, course_id)
);

CREATE TABLE IF NOT EXISTS pages (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  content TEXT NOT NULL,
  course_id INTEGER NOT NULL DEFAULT 0,      -- 0: site page
  cmid INTEGER NOT NULL DEFAULT 0,           -- 0: not a course module
  updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS event_log (
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  site_id TEXT NOT NULL DEFAULT 'local',
  typ TEXT NOT NULL,                         -- e.g. usage_started
  key TEXT NOT NULL,                         -- natural key: usage id
  data TEXT NOT NULL,                        -- JSON payload
  created_at INTEGER NOT NULL
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS contexts (
  id BIGSERIAL PRIMARY KEY,
  contextlevel INTEGER NOT NULL,
  instance_id BIGINT NOT NULL,
  path TEXT NOT NULL DEFAULT '',
  UNIQUE (contextlevel, instance_id)
);

CREATE TABLE IF NOT EXISTS courses (
  id BIGSERIAL PRIMARY KEY,
  shortname TEXT NOT NULL,
  fullname TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS course_modules (
  id BIGSERIAL PRIMARY KEY,
  course_id BIGINT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
  name TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS question_categories (
  id BIGSERIAL PRIMARY KEY,
  name TEXT NOT NULL,
  context_id BIGINT NOT NULL REFERENCES contexts(id)
);

CREATE TABLE IF NOT EXISTS questions (
  id BIGSERIAL PRIMARY KEY,
  category_id BIGINT NOT NULL REFERENCES question_categories(id),
  name TEXT NOT NULL,
  qtype TEXT NOT NULL,
  prompt_html TEXT NOT NULL DEFAULT '',
  choices_json TEXT NOT NULL DEFAULT '[]',
  answer_key_json TEXT NOT NULL DEFAULT '[]',
  max_mark DOUBLE PRECISION NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS question_usages (
  id BIGSERIAL PRIMARY KEY,
  component TEXT NOT NULL,
  context_id BIGINT NOT NULL,
  behaviour TEXT NOT NULL,
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS question_attempts (
  id BIGSERIAL PRIMARY KEY,
  usage_id BIGINT NOT NULL REFERENCES question_usages(id) ON DELETE CASCADE,
  slot INTEGER NOT NULL,
  question_id BIGINT NOT NULL,
  max_mark DOUBLE PRECISION NOT NULL,
  flagged INTEGER NOT NULL DEFAULT 0,
  UNIQUE (usage_id, slot)
);

CREATE TABLE IF NOT EXISTS question_attempt_steps (
  id BIGSERIAL PRIMARY KEY,
  attempt_id BIGINT NOT NULL REFERENCES question_attempts(id) ON DELETE CASCADE,
  seq INTEGER NOT NULL,
  state TEXT NOT NULL,
  fraction DOUBLE PRECISION,
  submitted INTEGER NOT NULL DEFAULT 0,
  response_json TEXT NOT NULL DEFAULT '{}',
  feedback_json TEXT NOT NULL DEFAULT '[]',
  created_at BIGINT NOT NULL,
  UNIQUE (attempt_id, seq)
);

CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  username TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL DEFAULT '',
  role TEXT NOT NULL DEFAULT 'student'
);

CREATE TABLE IF NOT EXISTS role_assignments (
  user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  context_id BIGINT NOT NULL REFERENCES contexts(id) ON DELETE CASCADE,
  role TEXT NOT NULL,
  PRIMARY KEY (user_id, context_id)
);

CREATE TABLE IF NOT EXISTS enrolments (
  user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  course_id BIGINT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
  PRIMARY KEY (user_id, course_id)
);

CREATE TABLE IF NOT EXISTS pages (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  content TEXT NOT NULL,
  course_id BIGINT NOT NULL DEFAULT 0,
  cmid BIGINT NOT NULL DEFAULT 0,
  updated_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS event_log (
  seq BIGSERIAL PRIMARY KEY,
  site_id TEXT NOT NULL DEFAULT 'local',
  typ TEXT NOT NULL,
  key TEXT NOT NULL,
  data TEXT NOT NULL,
  created_at BIGINT NOT NULL
);
`
