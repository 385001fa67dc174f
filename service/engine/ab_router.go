/*
 * @module service/engine/ab_router
 * @description A/B路由器,按流量切分在冠军与候选版本间做独立加权掷币路由
 * @architecture 分层架构 - 领域服务层
 * @stateFlow 创建测试(校验版本) -> 按请求独立路由 -> 完成/取消测试
 * @rules 每请求独立均匀抽样,无会话粘性;traffic_split创建后不可变;选中制品缺失时回退注册表活动版本
 * @dependencies gorm.io/gorm, math/rand
 * @refs service/engine/registry.go, service/models/model_version.go
 */

package engine

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"governance-engine-service/service/models"
)

// ABInfo 单次路由的A/B信息
type ABInfo struct {
	TestID string `json:"test_id"`
	Arm    string `json:"arm"` // champion/candidate
}

type abTestState struct {
	record          models.ABTest
	championServed  int64
	candidateServed int64
}

// ABRouter A/B测试路由器
type ABRouter struct {
	registry *ModelRegistry
	db       *gorm.DB

	mu    sync.RWMutex
	tests map[ModelType]*abTestState // 每类型至多一个进行中的测试

	randFn func() float64 // 可注入的均匀抽样源,测试用
}

// NewABRouter 创建A/B路由器
func NewABRouter(registry *ModelRegistry, db *gorm.DB) *ABRouter {
	return &ABRouter{
		registry: registry,
		db:       db,
		tests:    make(map[ModelType]*abTestState),
		randFn:   rand.Float64,
	}
}

// Select 为一次预测选择服务版本
// allowAB且该类型存在进行中的测试时做独立加权掷币;否则返回注册表活动版本
// 选中版本的制品不可加载时回退活动版本,绝不返回无制品的版本ID
func (r *ABRouter) Select(mt ModelType, allowAB bool) (string, *ABInfo) {
	activeID, hasActive := r.registry.GetActive(mt)

	if allowAB {
		// 测试配置在读锁内取值拷贝,CompleteTest持写锁改写同一record,锁外不得再碰
		var (
			state     *abTestState
			testID    string
			champion  string
			candidate string
			split     float64
			running   bool
		)
		r.mu.RLock()
		if s := r.tests[mt]; s != nil {
			state = s
			testID = s.record.ID
			champion = s.record.ChampionVersionID
			candidate = s.record.CandidateVersionID
			split = s.record.TrafficSplit
			running = s.record.Status == "active"
		}
		r.mu.RUnlock()

		if running {
			chosen := champion
			arm := "champion"
			if r.randFn() < split {
				chosen = candidate
				arm = "candidate"
			}

			if _, ok := r.registry.GetHandle(chosen); ok {
				if arm == "candidate" {
					atomic.AddInt64(&state.candidateServed, 1)
				} else {
					atomic.AddInt64(&state.championServed, 1)
				}
				abRoutedTotal.WithLabelValues(testID, arm).Inc()
				return chosen, &ABInfo{TestID: testID, Arm: arm}
			}
			slog.Warn("A/B选中版本制品缺失,回退活动版本",
				"test_id", testID, "version", chosen)
		}
	}

	if !hasActive {
		return "", nil
	}
	return activeID, nil
}

// CreateTest 创建A/B测试
// 冠军与候选必须是已注册的同类型版本,traffic_split必须落在(0,1)内
func (r *ABRouter) CreateTest(championID, candidateID string, trafficSplit float64) (models.ABTest, error) {
	if trafficSplit <= 0 || trafficSplit >= 1 {
		return models.ABTest{}, fmt.Errorf("无效的流量切分: %f", trafficSplit)
	}

	champion, ok := r.registry.Version(championID)
	if !ok {
		return models.ABTest{}, fmt.Errorf("冠军版本不存在: %s", championID)
	}
	candidate, ok := r.registry.Version(candidateID)
	if !ok {
		return models.ABTest{}, fmt.Errorf("候选版本不存在: %s", candidateID)
	}
	if champion.ModelType != candidate.ModelType {
		return models.ABTest{}, fmt.Errorf("冠军与候选版本类型不兼容: %s vs %s",
			champion.ModelType, candidate.ModelType)
	}

	mt := ModelType(champion.ModelType)

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing := r.tests[mt]; existing != nil && existing.record.Status == "active" {
		return models.ABTest{}, fmt.Errorf("该模型类型已存在进行中的A/B测试: %s", existing.record.ID)
	}

	record := models.ABTest{
		ModelType:          champion.ModelType,
		ChampionVersionID:  championID,
		CandidateVersionID: candidateID,
		TrafficSplit:       trafficSplit,
		Status:             "active",
		StartedAt:          time.Now(),
	}
	if r.db != nil {
		if err := r.db.Create(&record).Error; err != nil {
			return models.ABTest{}, fmt.Errorf("创建A/B测试失败: %w", err)
		}
	} else {
		record.ID = uuid.New().String()
	}

	r.tests[mt] = &abTestState{record: record}
	slog.Info("A/B测试已创建", "test_id", record.ID,
		"model_type", mt, "traffic_split", trafficSplit)
	return record, nil
}

// CompleteTest 结束A/B测试,status为completed或cancelled
func (r *ABRouter) CompleteTest(testID, status string) error {
	if status != "completed" && status != "cancelled" {
		return fmt.Errorf("无效的测试结束状态: %s", status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for mt, state := range r.tests {
		if state.record.ID != testID {
			continue
		}
		now := time.Now()
		state.record.Status = status
		state.record.EndedAt = &now
		state.record.ChampionServed = atomic.LoadInt64(&state.championServed)
		state.record.CandidateServed = atomic.LoadInt64(&state.candidateServed)

		if r.db != nil {
			if err := r.db.Model(&models.ABTest{}).Where("id = ?", testID).
				Updates(map[string]interface{}{
					"status":           status,
					"ended_at":         now,
					"champion_served":  state.record.ChampionServed,
					"candidate_served": state.record.CandidateServed,
				}).Error; err != nil {
				slog.Error("A/B测试结束持久化失败", "test_id", testID, "error", err)
			}
		}

		delete(r.tests, mt)
		slog.Info("A/B测试已结束", "test_id", testID, "status", status)
		return nil
	}
	return fmt.Errorf("A/B测试不存在: %s", testID)
}

// ActiveTests 列出进行中的测试配置
func (r *ABRouter) ActiveTests() []models.ABTest {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.ABTest, 0, len(r.tests))
	for _, state := range r.tests {
		record := state.record
		record.ChampionServed = atomic.LoadInt64(&state.championServed)
		record.CandidateServed = atomic.LoadInt64(&state.candidateServed)
		out = append(out, record)
	}
	return out
}
