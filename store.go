/*
Copyright (C) 2025 [GrainArc]

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published
by the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package Gozonal

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/GrainArc/Gozonal/internal/logger"
)

// 任务状态
const (
	TaskRunning = 0
	TaskDone    = 1
	TaskFailed  = 2
)

// 任务类型
const (
	TaskKindZonal       = "zonal_stats"
	TaskKindPoint       = "point_query"
	TaskKindPointVector = "point_query_vector"
)

// TaskRecord 一次调用的任务记录
type TaskRecord struct {
	ID         uint   `gorm:"primaryKey"`
	TaskID     string `gorm:"uniqueIndex;size:36"`
	Kind       string `gorm:"size:32"`
	VectorPath string
	RasterPath string
	Status     int
	Message    string
	ItemCount  int
	Args       string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// StatRow 单个要素的单个统计量
type StatRow struct {
	ID           uint   `gorm:"primaryKey"`
	TaskID       string `gorm:"index;size:36"`
	FeatureIndex int
	StatName     string
	IntValue     *int64
	FloatValue   *float64
}

// PointRow 单个采样点
type PointRow struct {
	ID           uint   `gorm:"primaryKey"`
	TaskID       string `gorm:"index;size:36"`
	PointIndex   int
	FeatureIndex int
	X            float64
	Y            float64
	Value        *float64
}

// ResultStore 基于 SQLite 的结果存储
type ResultStore struct {
	db *gorm.DB
}

// OpenResultStore 打开或创建结果库并迁移表结构
func OpenResultStore(path string) (*ResultStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("打开结果库失败: %w", err)
	}
	if err := db.AutoMigrate(&TaskRecord{}, &StatRow{}, &PointRow{}); err != nil {
		return nil, fmt.Errorf("迁移结果库失败: %w", err)
	}
	return &ResultStore{db: db}, nil
}

// Close 关闭数据库连接
func (s *ResultStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// BeginTask 创建运行中的任务记录，返回任务 ID
func (s *ResultStore) BeginTask(kind, vectorPath, rasterPath string, args any) (string, error) {
	taskID := uuid.New().String()
	argsJSON, err := json.Marshal(args)
	if err != nil {
		// NaN 等无法编码为 JSON 的参数，记录错误文本代替
		logger.L().Warn("store_task_args_unencodable", "task_id", taskID, "err", err)
		argsJSON, _ = json.Marshal(map[string]string{"error": err.Error()})
	}

	record := &TaskRecord{
		TaskID:     taskID,
		Kind:       kind,
		VectorPath: vectorPath,
		RasterPath: rasterPath,
		Status:     TaskRunning,
		Args:       string(argsJSON),
	}
	if err := s.db.Create(record).Error; err != nil {
		return "", fmt.Errorf("创建任务记录失败: %w", err)
	}
	logger.L().Debug("store_task_begin", "task_id", taskID, "kind", kind)
	return taskID, nil
}

// FinishTask 更新任务状态，runErr 非空时标记失败
func (s *ResultStore) FinishTask(taskID string, itemCount int, runErr error) error {
	status, message := TaskDone, ""
	if runErr != nil {
		status, message = TaskFailed, runErr.Error()
	}
	err := s.db.Model(&TaskRecord{}).Where("task_id = ?", taskID).Updates(map[string]any{
		"status":     status,
		"message":    message,
		"item_count": itemCount,
	}).Error
	if err != nil {
		return fmt.Errorf("更新任务状态失败: %w", err)
	}
	logger.L().Info("store_task_done", "task_id", taskID, "status", status, "items", itemCount)
	return nil
}

func finiteOrNil(v *float64) *float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	return v
}

// SaveZonal 保存分区统计结果
func (s *ResultStore) SaveZonal(taskID string, records []StatRecord) error {
	var rows []StatRow
	for i, rec := range records {
		for k, v := range rec.Ints {
			v := v
			rows = append(rows, StatRow{TaskID: taskID, FeatureIndex: i, StatName: k, IntValue: &v})
		}
		for k, v := range rec.Floats {
			rows = append(rows, StatRow{TaskID: taskID, FeatureIndex: i, StatName: k, FloatValue: finiteOrNil(v)})
		}
	}
	if len(rows) == 0 {
		return nil
	}
	if err := s.db.CreateInBatches(rows, 500).Error; err != nil {
		return fmt.Errorf("保存统计结果失败: %w", err)
	}
	return nil
}

// SavePoints 保存点查询结果，featureIndex 为空时每个点自成一组
func (s *ResultStore) SavePoints(taskID string, coords []orb.Point, values []*float64, featureIndex []int) error {
	if len(coords) != len(values) {
		return fmt.Errorf("坐标数 %d 与结果数 %d 不一致", len(coords), len(values))
	}
	rows := make([]PointRow, 0, len(coords))
	for i, p := range coords {
		fi := i
		if i < len(featureIndex) {
			fi = featureIndex[i]
		}
		rows = append(rows, PointRow{
			TaskID:       taskID,
			PointIndex:   i,
			FeatureIndex: fi,
			X:            p[0],
			Y:            p[1],
			Value:        finiteOrNil(values[i]),
		})
	}
	if len(rows) == 0 {
		return nil
	}
	if err := s.db.CreateInBatches(rows, 500).Error; err != nil {
		return fmt.Errorf("保存点查询结果失败: %w", err)
	}
	return nil
}

// GetTask 查询任务记录
func (s *ResultStore) GetTask(taskID string) (*TaskRecord, error) {
	var rec TaskRecord
	if err := s.db.Where("task_id = ?", taskID).First(&rec).Error; err != nil {
		return nil, fmt.Errorf("查询任务 %s 失败: %w", taskID, err)
	}
	return &rec, nil
}

// LoadZonal 读取分区统计结果，按要素序号还原
func (s *ResultStore) LoadZonal(taskID string) ([]StatRecord, error) {
	task, err := s.GetTask(taskID)
	if err != nil {
		return nil, err
	}
	var rows []StatRow
	if err := s.db.Where("task_id = ?", taskID).Order("feature_index, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("读取统计结果失败: %w", err)
	}

	out := make([]StatRecord, task.ItemCount)
	for i := range out {
		out[i] = NewStatRecord()
	}
	for _, r := range rows {
		if r.FeatureIndex < 0 || r.FeatureIndex >= len(out) {
			continue
		}
		if r.IntValue != nil {
			out[r.FeatureIndex].Ints[r.StatName] = *r.IntValue
			continue
		}
		out[r.FeatureIndex].Floats[r.StatName] = r.FloatValue
	}
	return out, nil
}

// LoadPoints 读取点查询结果
func (s *ResultStore) LoadPoints(taskID string) ([]PointRow, error) {
	var rows []PointRow
	if err := s.db.Where("task_id = ?", taskID).Order("point_index").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("读取点查询结果失败: %w", err)
	}
	return rows, nil
}

// ListTasks 按创建时间倒序列出最近的任务
func (s *ResultStore) ListTasks(limit int) ([]TaskRecord, error) {
	var tasks []TaskRecord
	q := s.db.Order("id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("查询任务列表失败: %w", err)
	}
	return tasks, nil
}

// RunZonal 执行分区统计并记录任务与结果
func (s *ResultStore) RunZonal(e *Engine, vectorPath, rasterPath string, opts ZonalOptions) (string, []StatRecord, error) {
	taskID, err := s.BeginTask(TaskKindZonal, vectorPath, rasterPath, opts)
	if err != nil {
		return "", nil, err
	}

	records, runErr := e.ZonalStats(vectorPath, rasterPath, opts)
	if runErr == nil {
		runErr = s.SaveZonal(taskID, records)
	}
	if err := s.FinishTask(taskID, len(records), runErr); err != nil {
		return taskID, nil, err
	}
	if runErr != nil {
		return taskID, nil, runErr
	}
	return taskID, records, nil
}

// RunPointQuery 执行点查询并记录任务与结果
func (s *ResultStore) RunPointQuery(e *Engine, rasterPath string, coords []orb.Point, opts PointQueryOptions) (string, []*float64, error) {
	taskID, err := s.BeginTask(TaskKindPoint, "", rasterPath, opts)
	if err != nil {
		return "", nil, err
	}

	values, runErr := e.PointQuery(rasterPath, coords, opts)
	if runErr == nil {
		runErr = s.SavePoints(taskID, coords, values, nil)
	}
	if err := s.FinishTask(taskID, len(values), runErr); err != nil {
		return taskID, nil, err
	}
	if runErr != nil {
		return taskID, nil, runErr
	}
	return taskID, values, nil
}

// RunPointQueryVector 执行矢量驱动的点查询并记录任务与结果
func (s *ResultStore) RunPointQueryVector(e *Engine, vectorPath, rasterPath string, opts PointQueryOptions) (string, []PointValues, error) {
	taskID, err := s.BeginTask(TaskKindPointVector, vectorPath, rasterPath, opts)
	if err != nil {
		return "", nil, err
	}

	groups, runErr := e.PointQueryVector(vectorPath, rasterPath, opts)
	if runErr == nil {
		var (
			coords   []orb.Point
			values   []*float64
			features []int
		)
		for i, g := range groups {
			coords = append(coords, g.Coords...)
			values = append(values, g.Values...)
			for range g.Values {
				features = append(features, i)
			}
		}
		runErr = s.SavePoints(taskID, coords, values, features)
	}
	if err := s.FinishTask(taskID, len(groups), runErr); err != nil {
		return taskID, nil, err
	}
	if runErr != nil {
		return taskID, nil, runErr
	}
	return taskID, groups, nil
}
