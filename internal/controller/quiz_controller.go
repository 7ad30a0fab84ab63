package controller

import (
	"leave_assessment_backend/internal/service"
	"leave_assessment_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type QuizController struct {
	Service *service.QuizService
}

func NewQuizController(svc *service.QuizService) *QuizController {
	return &QuizController{Service: svc}
}

// @Summary 学生端：获取已发布的测验
// @Tags 测验
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]service.StudentQuiz}
// @Router /quiz [get]
func (c *QuizController) List(ctx *gin.Context) {
	quizzes, err := c.Service.ListForStudent(ctx.Request.Context())
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, quizzes)
}

// @Summary 学生端：获取测验详情（不含答案）
// @Tags 测验
// @Produce json
// @Security BearerAuth
// @Param id path string true "测验ID"
// @Success 200 {object} util.Response{data=service.StudentQuizDetail}
// @Failure 404 {object} util.Response
// @Router /quiz/{id} [get]
func (c *QuizController) Get(ctx *gin.Context) {
	requester, ok := util.Requester(ctx)
	if !ok {
		util.Unauthorized(ctx)
		return
	}

	detail, err := c.Service.GetForStudent(ctx.Request.Context(), ctx.Param("id"), requester.UserID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, detail)
}

// @Summary 学生端：提交测验
// @Tags 测验
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "测验ID"
// @Param body body service.SubmitRequest true "答案"
// @Success 200 {object} util.Response{data=service.QuizSubmission}
// @Failure 409 {object} util.Response
// @Router /quiz/{id}/submit [post]
func (c *QuizController) Submit(ctx *gin.Context) {
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

	result, err := c.Service.Submit(ctx.Request.Context(), ctx.Param("id"), requester.UserID, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.SuccessWithMessage(ctx, result.Message, result)
}

// @Summary 学生端：我的测验记录
// @Tags 测验
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=service.MyQuizAttempts}
// @Router /quiz/my-attempts [get]
func (c *QuizController) MyAttempts(ctx *gin.Context) {
	requester, ok := util.Requester(ctx)
	if !ok {
		util.Unauthorized(ctx)
		return
	}

	attempts, err := c.Service.MyAttempts(ctx.Request.Context(), requester.UserID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, attempts)
}

// @Summary 学生端：查看测验结果（含答案）
// @Tags 测验
// @Produce json
// @Security BearerAuth
// @Param id path string true "测验ID"
// @Success 200 {object} util.Response{data=service.QuizResult}
// @Failure 404 {object} util.Response
// @Router /quiz/{id}/results [get]
func (c *QuizController) Results(ctx *gin.Context) {
	requester, ok := util.Requester(ctx)
	if !ok {
		util.Unauthorized(ctx)
		return
	}

	result, err := c.Service.Results(ctx.Request.Context(), ctx.Param("id"), requester.UserID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// @Summary 教师端：创建测验
// @Tags 测验-教师
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.QuizInput true "测验内容"
// @Success 201 {object} util.Response{data=model.Quiz}
// @Failure 400 {object} util.Response
// @Router /quiz/create [post]
func (c *QuizController) Create(ctx *gin.Context) {
	requester, ok := util.Requester(ctx)
	if !ok {
		util.Unauthorized(ctx)
		return
	}

	var req service.QuizInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	quiz, err := c.Service.Create(ctx.Request.Context(), requester.UserID, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, quiz)
}

// @Summary 教师端：全部测验及作答统计
// @Tags 测验-教师
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]service.TeacherQuiz}
// @Router /quiz/teacher/all [get]
func (c *QuizController) ListForTeacher(ctx *gin.Context) {
	quizzes, err := c.Service.ListForTeacher(ctx.Request.Context())
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, quizzes)
}

// @Summary 教师端：更新测验
// @Tags 测验-教师
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "测验ID"
// @Param body body service.QuizInput true "测验内容"
// @Success 200 {object} util.Response{data=model.Quiz}
// @Router /quiz/{id} [put]
func (c *QuizController) Update(ctx *gin.Context) {
	var req service.QuizInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	quiz, err := c.Service.Update(ctx.Request.Context(), ctx.Param("id"), req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.SuccessWithMessage(ctx, "Quiz updated successfully", quiz)
}

// @Summary 教师端：删除测验及其作答记录
// @Tags 测验-教师
// @Produce json
// @Security BearerAuth
// @Param id path string true "测验ID"
// @Success 200 {object} util.Response
// @Router /quiz/{id} [delete]
func (c *QuizController) Delete(ctx *gin.Context) {
	if err := c.Service.Delete(ctx.Request.Context(), ctx.Param("id")); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.SuccessWithMessage(ctx, "Quiz deleted successfully", nil)
}
