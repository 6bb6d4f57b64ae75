// Package postgres implements PostgreSQL persistence layer for Phoenix Recovery Hub.
package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE PROFILES
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create profiles and progress tables
-- Version: 001

-- Main profiles table
CREATE TABLE IF NOT EXISTS profiles (
    id UUID PRIMARY KEY,
    email VARCHAR(255) NOT NULL UNIQUE,
    password_hash VARCHAR(100) NOT NULL,
    display_name VARCHAR(100) NOT NULL,
    injury_type VARCHAR(100) NOT NULL DEFAULT '',
    recovery_goals JSONB NOT NULL DEFAULT '[]'::jsonb,
    daily_goal_minutes INTEGER NOT NULL DEFAULT 15,
    phoenix_phase INTEGER NOT NULL DEFAULT 1,
    flame_strength INTEGER NOT NULL DEFAULT 0,
    last_check_in_at TIMESTAMP WITH TIME ZONE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    -- Constraints for data integrity
    CONSTRAINT valid_phase CHECK (phoenix_phase >= 1 AND phoenix_phase <= 4),
    CONSTRAINT valid_flame CHECK (flame_strength >= 0 AND flame_strength <= 100),
    CONSTRAINT valid_daily_goal CHECK (daily_goal_minutes >= 1 AND daily_goal_minutes <= 1440)
);

-- Indexes for common queries
CREATE INDEX IF NOT EXISTS idx_profiles_email ON profiles(email);
CREATE INDEX IF NOT EXISTS idx_profiles_last_check_in ON profiles(last_check_in_at);
CREATE INDEX IF NOT EXISTS idx_profiles_phase ON profiles(phoenix_phase);

-- Progress aggregate: maintained incrementally, never recomputed from scratch
CREATE TABLE IF NOT EXISTS progress_aggregate (
    user_id UUID PRIMARY KEY REFERENCES profiles(id) ON DELETE CASCADE,
    total_xp INTEGER NOT NULL DEFAULT 0,
    quests_completed INTEGER NOT NULL DEFAULT 0,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_total_xp CHECK (total_xp >= 0),
    CONSTRAINT valid_quests_completed CHECK (quests_completed >= 0)
);

-- Updated_at trigger function for automatic timestamp updates
CREATE OR REPLACE FUNCTION update_updated_at_column()
RETURNS TRIGGER AS $$
BEGIN
    NEW.updated_at = NOW();
    RETURN NEW;
END;
$$ language 'plpgsql';

-- Apply trigger to profiles table
DROP TRIGGER IF EXISTS update_profiles_updated_at ON profiles;
CREATE TRIGGER update_profiles_updated_at
    BEFORE UPDATE ON profiles
    FOR EACH ROW
    EXECUTE FUNCTION update_updated_at_column();
`

const migration001Down = `
DROP TRIGGER IF EXISTS update_profiles_updated_at ON profiles;
DROP FUNCTION IF EXISTS update_updated_at_column();
DROP TABLE IF EXISTS progress_aggregate;
DROP TABLE IF EXISTS profiles;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE QUEST RECORDS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create quest records table
-- Version: 002
-- Purpose: Per-user quest state. The catalog itself is static and lives in code;
-- only user records are persisted. Absence of a row means the effective status
-- is derived from the user's phase.

CREATE TABLE IF NOT EXISTS quest_records (
    id SERIAL PRIMARY KEY,
    user_id UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
    quest_key VARCHAR(100) NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'in_progress',
    phase INTEGER NOT NULL,
    xp_reward INTEGER NOT NULL DEFAULT 0,
    completed_at TIMESTAMP WITH TIME ZONE,
    metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    UNIQUE(user_id, quest_key),
    CONSTRAINT valid_record_status CHECK (status IN ('locked', 'available', 'in_progress', 'completed')),
    CONSTRAINT valid_record_phase CHECK (phase >= 1 AND phase <= 4),
    CONSTRAINT valid_record_xp CHECK (xp_reward >= 0)
);

CREATE INDEX IF NOT EXISTS idx_quest_records_user ON quest_records(user_id);
CREATE INDEX IF NOT EXISTS idx_quest_records_user_status ON quest_records(user_id, status);
CREATE INDEX IF NOT EXISTS idx_quest_records_completed_at ON quest_records(user_id, completed_at DESC)
    WHERE status = 'completed';

-- Composite index for the phase advancement counter
CREATE INDEX IF NOT EXISTS idx_quest_records_user_phase ON quest_records(user_id, phase)
    WHERE status = 'completed';
`

const migration002Down = `
DROP TABLE IF EXISTS quest_records;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE CHECK-INS AND RECOMMENDATIONS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create check-ins, streaks and recommendations tables
-- Version: 003

-- Daily check-ins: exactly one row per (user, date), upsert semantics
CREATE TABLE IF NOT EXISTS check_ins (
    id SERIAL PRIMARY KEY,
    user_id UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
    checkin_date DATE NOT NULL,
    mood INTEGER NOT NULL,
    energy INTEGER NOT NULL,
    pain INTEGER NOT NULL,
    sleep_hours DECIMAL(4,2) NOT NULL DEFAULT 0,
    note TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    UNIQUE(user_id, checkin_date),
    CONSTRAINT valid_mood CHECK (mood >= 1 AND mood <= 5),
    CONSTRAINT valid_energy CHECK (energy >= 1 AND energy <= 5),
    CONSTRAINT valid_pain CHECK (pain >= 0 AND pain <= 10),
    CONSTRAINT valid_sleep CHECK (sleep_hours >= 0 AND sleep_hours <= 24)
);

CREATE INDEX IF NOT EXISTS idx_check_ins_user_date ON check_ins(user_id, checkin_date DESC);

-- Streaks table for tracking consecutive check-in days
CREATE TABLE IF NOT EXISTS streaks (
    user_id UUID PRIMARY KEY REFERENCES profiles(id) ON DELETE CASCADE,
    current_streak INTEGER NOT NULL DEFAULT 0,
    best_streak INTEGER NOT NULL DEFAULT 0,
    last_date DATE
);

-- Persisted daily recommendations. Fallback recommendations are never
-- written here: a retry must have a chance to get a real one.
CREATE TABLE IF NOT EXISTS recommendations (
    id SERIAL PRIMARY KEY,
    user_id UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
    recommendation_date DATE NOT NULL,
    payload JSONB NOT NULL,
    source VARCHAR(20) NOT NULL DEFAULT 'gemini',
    model VARCHAR(100) NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    UNIQUE(user_id, recommendation_date),
    CONSTRAINT valid_source CHECK (source IN ('gemini', 'fallback'))
);

CREATE INDEX IF NOT EXISTS idx_recommendations_user_date ON recommendations(user_id, recommendation_date DESC);
`

const migration003Down = `
DROP TABLE IF EXISTS recommendations;
DROP TABLE IF EXISTS streaks;
DROP TABLE IF EXISTS check_ins;
`
