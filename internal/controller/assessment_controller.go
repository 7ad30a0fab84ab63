package controller

import (
	"leave_assessment_backend/internal/service"
	"leave_assessment_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AssessmentController struct {
	Service *service.AssessmentService
}

func NewAssessmentController(svc *service.AssessmentService) *AssessmentController {
	return &AssessmentController{Service: svc}
}

// @Summary 学生端：获取请假评估题目（不含答案）
// @Tags 请假评估
// @Produce json
// @Security BearerAuth
// @Param id path string true "请假ID"
// @Success 200 {object} util.Response{data=service.StudentAssessment}
// @Failure 400 {object} util.Response
// @Failure 403 {object} util.Response
// @Router /leave/{id}/assessment [get]
func (c *AssessmentController) Fetch(ctx *gin.Context) {
	requester, ok := util.Requester(ctx)
	if !ok {
		util.Unauthorized(ctx)
		return
	}

	assessment, err := c.Service.FetchForStudent(ctx.Request.Context(), ctx.Param("id"), requester)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, assessment)
}

// @Summary 学生端：提交请假评估答案
// @Tags 请假评估
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "请假ID"
// @Param body body service.SubmitRequest true "答案"
// @Success 200 {object} util.Response{data=service.SubmissionResult}
// @Failure 409 {object} util.Response
// @Router /leave/{id}/submit-assessment [post]
func (c *AssessmentController) Submit(ctx *gin.Context) {
	requester, ok := util.Requester(ctx)
	if !ok {
		util.Unauthorized(ctx)
		return
	}

	var req service.SubmitRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.Service.Submit(ctx.Request.Context(), ctx.Param("id"), requester, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	message := "Assessment submitted. You did not reach the pass mark."
	if result.Passed {
		message = "Assessment submitted. You passed."
	}
	util.SuccessWithMessage(ctx, message, result)
}

// @Summary 教师端：为请假生成并锁定评估题目
// @Tags 请假评估-教师
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "请假ID"
// @Param body body service.AttachRequest true "评估设置"
// @Success 201 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /leave/{id}/assessment [post]
func (c *AssessmentController) Attach(ctx *gin.Context) {
	var req service.AttachRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	leave, err := c.Service.Attach(ctx.Request.Context(), ctx.Param("id"), req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, gin.H{
		"leaveId":       leave.ID,
		"state":         leave.Assessment.State(),
		"section":       leave.Assessment.Section,
		"difficulty":    leave.Assessment.Difficulty,
		"questionCount": leave.Assessment.QuestionCount,
	})
}

// @Summary 教师端：查看评估结果（含答案与逐题判分）
// @Tags 请假评估-教师
// @Produce json
// @Security BearerAuth
// @Param id path string true "请假ID"
// @Success 200 {object} util.Response{data=service.TeacherAssessmentView}
// @Router /leave/{id}/assessment/result [get]
func (c *AssessmentController) Result(ctx *gin.Context) {
	view, err := c.Service.GetResultForTeacher(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// @Summary 教师端：预览题库生成结果
// @Tags 请假评估-教师
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.PreviewRequest true "生成参数"
// @Success 200 {object} util.Response{data=[]model.Question}
// @Router /assessment/generate [post]
func (c *AssessmentController) Generate(ctx *gin.Context) {
	var req service.PreviewRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	questions, err := c.Service.Preview(ctx.Request.Context(), req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, questions)
}
