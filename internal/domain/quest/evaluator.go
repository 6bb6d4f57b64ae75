package quest

import (
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PATH EVALUATOR
// Чистая логика Phoenix Path: вычисление эффективных статусов квестов и
// эффектов выполнения. Единственный компонент, которому разрешено менять
// status, completedAt, phoenixPhase, flameStrength и totalXp.
// ══════════════════════════════════════════════════════════════════════════════

// StatusMap - карта эффективных статусов квестов пользователя.
type StatusMap map[shared.QuestKey]Status

// StatusOf возвращает статус квеста. Для неизвестного ключа возвращает
// StatusLocked - функция тотальная и никогда не паникует.
func (m StatusMap) StatusOf(key shared.QuestKey) Status {
	if status, ok := m[key]; ok {
		return status
	}
	return StatusLocked
}

// Completed возвращает количество выполненных квестов в карте.
func (m StatusMap) Completed() int {
	count := 0
	for _, status := range m {
		if status == StatusCompleted {
			count++
		}
	}
	return count
}

// Evaluator вычисляет состояние Phoenix Path поверх каталога.
type Evaluator struct {
	catalog *Catalog
}

// NewEvaluator создаёт evaluator для каталога.
func NewEvaluator(catalog *Catalog) *Evaluator {
	return &Evaluator{catalog: catalog}
}

// Catalog возвращает каталог, поверх которого работает evaluator.
func (e *Evaluator) Catalog() *Catalog {
	return e.catalog
}

// ComputeStatuses вычисляет эффективный статус каждого квеста каталога.
// Персистентный статус из записи имеет приоритет; при отсутствии записи
// квест доступен, если его фаза достигнута, иначе заблокирован.
// Тотальная функция: ошибок нет при корректном входе.
func (e *Evaluator) ComputeStatuses(records []*Record, userPhase shared.Phase) StatusMap {
	byKey := make(map[shared.QuestKey]*Record, len(records))
	for _, rec := range records {
		byKey[rec.QuestKey] = rec
	}

	statuses := make(StatusMap, e.catalog.Size())
	for _, def := range e.catalog.All() {
		if rec, ok := byKey[def.Key]; ok {
			statuses[def.Key] = rec.Status
			continue
		}
		if def.Phase <= userPhase {
			statuses[def.Key] = StatusAvailable
		} else {
			statuses[def.Key] = StatusLocked
		}
	}
	return statuses
}

// GuestStatuses возвращает упрощённую карту для гостей (без аутентификации):
// квесты первой фазы доступны, остальные заблокированы. Ничего не персистится.
func (e *Evaluator) GuestStatuses() StatusMap {
	statuses := make(StatusMap, e.catalog.Size())
	for _, def := range e.catalog.All() {
		if def.Phase == shared.MinPhase {
			statuses[def.Key] = StatusAvailable
		} else {
			statuses[def.Key] = StatusLocked
		}
	}
	return statuses
}

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETION EVALUATION
// ══════════════════════════════════════════════════════════════════════════════

// CompletionResult описывает эффекты выполнения квеста.
type CompletionResult struct {
	// Advanced - произошло ли продвижение фазы.
	Advanced bool

	// NewPhase - фаза после выполнения.
	NewPhase shared.Phase

	// NewFlame - сила пламени после выполнения (0 при продвижении).
	NewFlame shared.FlameStrength

	// XPEarned - начисленный XP (0 при повторном выполнении).
	XPEarned int

	// FlameGain - прирост пламени от этого квеста.
	FlameGain int
}

// EvaluateCompletion вычисляет эффекты выполнения квеста по формулам:
//
//	flameGain = min(ceil(xpReward / 10), 15)
//	newFlame  = min(currentFlame + flameGain, 100)
//
// Продвижение фазы: completedInPhase >= ceil(0.6 * квестов в фазе)
// И newFlame >= 60 И currentPhase < 4. Оба условия обязательны - ни одного
// из них по отдельности недостаточно. При продвижении пламя сбрасывается
// ровно в 0. completedInPhase включает только что выполненный квест.
// Функция чистая: никаких побочных эффектов, запись выполняет вызывающий.
func (e *Evaluator) EvaluateCompletion(
	def Definition,
	currentPhase shared.Phase,
	currentFlame shared.FlameStrength,
	completedInPhase int,
) CompletionResult {
	gain := def.FlameGain()
	newFlame := currentFlame.Add(gain)

	result := CompletionResult{
		Advanced:  false,
		NewPhase:  currentPhase,
		NewFlame:  newFlame,
		XPEarned:  def.XPReward,
		FlameGain: gain,
	}

	threshold := e.catalog.AdvanceThreshold(currentPhase)
	if completedInPhase >= threshold && newFlame.CanAdvance() && !currentPhase.IsFinal() {
		result.Advanced = true
		result.NewPhase = currentPhase.Next()
		result.NewFlame = shared.MinFlame
	}

	return result
}

// RepeatCompletion возвращает результат повторного выполнения: состояние
// пользователя не меняется, XP не начисляется.
func RepeatCompletion(currentPhase shared.Phase, currentFlame shared.FlameStrength) CompletionResult {
	return CompletionResult{
		Advanced: false,
		NewPhase: currentPhase,
		NewFlame: currentFlame,
		XPEarned: 0,
	}
}
