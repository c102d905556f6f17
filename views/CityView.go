package views

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/GrainArc/CityLoD1/models"
	"github.com/GrainArc/CityLoD1/services"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// 任务状态枚举
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// WebSocket消息结构体
type ProgressMessage struct {
	Type       string `json:"type"`
	Percentage int    `json:"percentage,omitempty"`
	Message    string `json:"message"`
	Timestamp  int64  `json:"timestamp"`
}

type ClientMessage struct {
	Action string `json:"action"`
}

// 构建任务信息结构体
type BuildTaskInfo struct {
	ID        string                `json:"id"`
	Status    TaskStatus            `json:"status"`
	Request   services.BuildRequest `json:"build_request"`
	CreatedAt time.Time             `json:"created_at"`
	StartedAt *time.Time            `json:"started_at,omitempty"`
	EndedAt   *time.Time            `json:"ended_at,omitempty"`
	Error     string                `json:"error,omitempty"`
	Result    *services.BuildOutput `json:"-"`
	Context   context.Context       `json:"-"`
	Cancel    context.CancelFunc    `json:"-"`
	mutex     sync.RWMutex          `json:"-"`
}

// 构建任务管理器
type BuildTaskManager struct {
	tasks map[string]*BuildTaskInfo
	mutex sync.RWMutex
}

func NewBuildTaskManager() *BuildTaskManager {
	return &BuildTaskManager{tasks: make(map[string]*BuildTaskInfo)}
}

func (tm *BuildTaskManager) AddTask(task *BuildTaskInfo) {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()
	tm.tasks[task.ID] = task
}

func (tm *BuildTaskManager) GetTask(taskID string) (*BuildTaskInfo, bool) {
	tm.mutex.RLock()
	defer tm.mutex.RUnlock()
	task, exists := tm.tasks[taskID]
	return task, exists
}

// 删除任务，运行中的任务会被取消
func (tm *BuildTaskManager) RemoveTask(taskID string) {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()
	if task, exists := tm.tasks[taskID]; exists {
		if task.Cancel != nil {
			task.Cancel()
		}
		delete(tm.tasks, taskID)
	}
}

func (task *BuildTaskInfo) UpdateStatus(status TaskStatus) {
	task.mutex.Lock()
	defer task.mutex.Unlock()
	task.Status = status
	now := time.Now()

	switch status {
	case TaskStatusRunning:
		task.StartedAt = &now
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		task.EndedAt = &now
	}
}

// claim 在同一把锁内检查并切换为运行状态，只有一个连接能够启动任务
func (task *BuildTaskInfo) claim() bool {
	task.mutex.Lock()
	defer task.mutex.Unlock()
	if task.Status != TaskStatusPending {
		return false
	}
	now := time.Now()
	task.Status = TaskStatusRunning
	task.StartedAt = &now
	return true
}

func (task *BuildTaskInfo) fail(status TaskStatus, err error) {
	task.UpdateStatus(status)
	task.mutex.Lock()
	task.Error = err.Error()
	task.mutex.Unlock()
}

type CityController struct {
	Service *services.BuildService
	Tasks   *BuildTaskManager
}

func NewCityController(svc *services.BuildService) *CityController {
	return &CityController{Service: svc, Tasks: NewBuildTaskManager()}
}

// StartBuild 创建构建任务，通过WebSocket连接开始执行
func (cc *CityController) StartBuild(c *gin.Context) {
	var req services.BuildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "参数错误: " + err.Error()})
		return
	}
	taskID, err := cc.Service.Prepare(&req)
	if err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	task := &BuildTaskInfo{
		ID:        taskID,
		Status:    TaskStatusPending,
		Request:   req,
		CreatedAt: time.Now(),
		Context:   ctx,
		Cancel:    cancel,
	}
	cc.Tasks.AddTask(task)

	c.JSON(200, gin.H{
		"task_id": taskID,
		"status":  task.Status,
		"message": "构建任务已创建，请使用WebSocket连接开始执行",
		"ws_url":  fmt.Sprintf("/city/build/ws/%s", taskID),
	})
}

// BuildWebSocket 执行构建并推送进度，客户端发送 {"action":"cancel"} 取消
func (cc *CityController) BuildWebSocket(c *gin.Context) {
	taskID := c.Param("taskId")
	task, exists := cc.Tasks.GetTask(taskID)
	if !exists {
		c.JSON(404, gin.H{"error": "任务不存在"})
		return
	}

	if !task.claim() {
		c.JSON(400, gin.H{"error": "任务已经开始或已完成"})
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// 握手失败，任务退回等待状态
		task.mutex.Lock()
		task.Status = TaskStatusPending
		task.StartedAt = nil
		task.mutex.Unlock()
		return
	}
	defer ws.Close()

	// 进度回调与主流程都会写连接
	var writeMu sync.Mutex
	send := func(msg ProgressMessage) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		msg.Timestamp = time.Now().UnixMilli()
		return ws.WriteJSON(msg)
	}

	cancelChan := make(chan bool, 1)
	go func() {
		for {
			var msg ClientMessage
			if err := ws.ReadJSON(&msg); err != nil {
				cancelChan <- true
				task.Cancel()
				return
			}
			if msg.Action == "cancel" {
				fmt.Printf("收到构建任务 %s 的取消请求\n", taskID)
				cancelChan <- true
				task.Cancel()
				return
			}
		}
	}()

	progressCallback := func(complete float64, message string) bool {
		select {
		case <-task.Context.Done():
			return false
		default:
		}
		if err := send(ProgressMessage{Type: "progress", Percentage: int(complete * 100), Message: message}); err != nil {
			fmt.Printf("发送进度消息失败: %v\n", err)
			return false
		}
		return true
	}

	startTime := time.Now()
	resultChan := make(chan *services.BuildOutput, 1)
	errorChan := make(chan error, 1)
	go func() {
		out, err := cc.Service.Run(task.Context, taskID, task.Request, progressCallback)
		if err != nil {
			errorChan <- err
		} else {
			resultChan <- out
		}
	}()

	cancelled := func() {
		task.UpdateStatus(TaskStatusCancelled)
		send(ProgressMessage{Type: "cancelled", Message: fmt.Sprintf("构建任务 %s 已被取消", taskID)})
	}

	select {
	case <-cancelChan:
		cancelled()
	case <-task.Context.Done():
		cancelled()
	case err := <-errorChan:
		if task.Context.Err() != nil {
			cancelled()
			return
		}
		task.fail(TaskStatusFailed, err)
		send(ProgressMessage{Type: "error", Message: "构建失败: " + err.Error()})
	case out := <-resultChan:
		task.mutex.Lock()
		task.Result = out
		task.mutex.Unlock()
		task.UpdateStatus(TaskStatusCompleted)
		rep := out.Report
		send(ProgressMessage{
			Type:       "complete",
			Percentage: 100,
			Message: fmt.Sprintf("构建完成，耗时: %v，实体 %d 个，地形三角形 %d 个，缺陷 %d 个",
				time.Since(startTime), rep.Solids, rep.TerrainTriangles, len(rep.Defects)),
		})
	}
}

// GetBuildStatus 查询任务状态，进程内没有的任务从构建记录中查询
func (cc *CityController) GetBuildStatus(c *gin.Context) {
	taskID := c.Param("taskId")
	task, exists := cc.Tasks.GetTask(taskID)
	if !exists {
		record, err := cc.Service.Record(taskID)
		if err != nil {
			c.JSON(404, gin.H{"error": "任务不存在"})
			return
		}
		c.JSON(200, gin.H{
			"task_id":    record.TaskID,
			"status":     recordStatus(record.Status),
			"created_at": record.CreatedAt,
			"ended_at":   record.UpdatedAt,
			"solids":     record.Solids,
			"error":      record.Error,
		})
		return
	}

	task.mutex.RLock()
	defer task.mutex.RUnlock()
	response := gin.H{
		"task_id":    task.ID,
		"status":     task.Status,
		"created_at": task.CreatedAt,
		"started_at": task.StartedAt,
		"ended_at":   task.EndedAt,
	}
	if task.Error != "" {
		response["error"] = task.Error
	}
	if task.Result != nil {
		rep := task.Result.Report
		response["report"] = gin.H{
			"features":          rep.Features,
			"footprints":        rep.Footprints,
			"solids":            rep.Solids,
			"terrain_samples":   rep.TerrainSamples,
			"terrain_triangles": rep.TerrainTriangles,
			"shared_segments":   rep.SharedSegments,
			"defects":           rep.Defects.Report(),
		}
	}
	c.JSON(200, response)
}

func recordStatus(s int) TaskStatus {
	switch s {
	case models.BuildCompleted:
		return TaskStatusCompleted
	case models.BuildFailed:
		return TaskStatusFailed
	case models.BuildCancelled:
		return TaskStatusCancelled
	}
	return TaskStatusRunning
}

// DownloadBuild 下载结果压缩包
func (cc *CityController) DownloadBuild(c *gin.Context) {
	taskID := c.Param("taskId")
	var region string
	if task, ok := cc.Tasks.GetTask(taskID); ok {
		task.mutex.RLock()
		status := task.Status
		region = task.Request.Region
		task.mutex.RUnlock()
		if status != TaskStatusCompleted {
			c.JSON(400, gin.H{"error": "任务尚未完成"})
			return
		}
	} else if record, err := cc.Service.Record(taskID); err == nil {
		region = record.Region
	} else {
		c.JSON(404, gin.H{"error": "任务不存在"})
		return
	}
	path, err := cc.Service.ArchivePath(taskID, region)
	if err != nil {
		c.JSON(404, gin.H{"error": "结果文件不存在"})
		return
	}
	c.FileAttachment(path, filepath.Base(path))
}

// DeleteBuild 取消并移除任务
func (cc *CityController) DeleteBuild(c *gin.Context) {
	taskID := c.Param("taskId")
	if _, ok := cc.Tasks.GetTask(taskID); !ok {
		c.JSON(404, gin.H{"error": "任务不存在"})
		return
	}
	cc.Tasks.RemoveTask(taskID)
	c.JSON(200, gin.H{"task_id": taskID, "message": "任务已移除"})
}
