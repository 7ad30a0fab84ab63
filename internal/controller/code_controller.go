package controller

import (
	"leave_assessment_backend/internal/model"
	"leave_assessment_backend/internal/service"
	"leave_assessment_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type CodeController struct {
	Executor *service.CodeExecutionService
	Tutor    *service.TutorService
}

func NewCodeController(executor *service.CodeExecutionService, tutor *service.TutorService) *CodeController {
	return &CodeController{Executor: executor, Tutor: tutor}
}

type ExecuteRequest struct {
	Code     string `json:"code" binding:"required"`
	Language string `json:"language" binding:"required"`
	Stdin    string `json:"stdin"`
}

type RunTestsRequest struct {
	Code      string           `json:"code" binding:"required"`
	Language  string           `json:"language" binding:"required"`
	TestCases []model.TestCase `json:"testCases" binding:"required,min=1"`
}

type EvaluateRequest struct {
	Question       string `json:"question" binding:"required"`
	Code           string `json:"code" binding:"required"`
	Language       string `json:"language"`
	ExpectedOutput string `json:"expectedOutput"`
}

type HintsRequest struct {
	Question string `json:"question" binding:"required"`
	Code     string `json:"code"`
}

type ExplainRequest struct {
	Code     string `json:"code" binding:"required"`
	Language string `json:"language"`
}

// @Summary 运行代码
// @Tags 代码执行
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body ExecuteRequest true "代码"
// @Success 200 {object} util.Response{data=service.ExecutionResult}
// @Router /code/execute [post]
func (c *CodeController) Execute(ctx *gin.Context) {
	var req ExecuteRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	result, err := c.Executor.Run(ctx.Request.Context(), req.Code, req.Language, req.Stdin)
	if err != nil {
		util.HandleProviderError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// @Summary 按测试用例运行代码
// @Tags 代码执行
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body RunTestsRequest true "代码与测试用例"
// @Success 200 {object} util.Response{data=service.TestRunReport}
// @Router /code/run-tests [post]
func (c *CodeController) RunTests(ctx *gin.Context) {
	var req RunTestsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	report, err := c.Executor.RunTestCases(ctx.Request.Context(), req.Code, req.Language, req.TestCases)
	if err != nil {
		util.HandleProviderError(ctx, err)
		return
	}
	util.Success(ctx, report)
}

// @Summary 语法检查
// @Tags 代码执行
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body ExecuteRequest true "代码"
// @Success 200 {object} util.Response{data=service.SyntaxReport}
// @Router /code/validate [post]
func (c *CodeController) Validate(ctx *gin.Context) {
	var req ExecuteRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	report, err := c.Executor.ValidateSyntax(ctx.Request.Context(), req.Code, req.Language)
	if err != nil {
		util.HandleProviderError(ctx, err)
		return
	}
	util.Success(ctx, report)
}

// @Summary AI 代码评估
// @Tags AI 辅导
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body EvaluateRequest true "题目与代码"
// @Success 200 {object} util.Response{data=service.CodeEvaluation}
// @Router /code/evaluate [post]
func (c *CodeController) Evaluate(ctx *gin.Context) {
	var req EvaluateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	evaluation, err := c.Tutor.EvaluateCode(ctx.Request.Context(), req.Question, req.Code, req.Language, req.ExpectedOutput)
	if err != nil {
		util.HandleProviderError(ctx, err)
		return
	}
	util.Success(ctx, evaluation)
}

// @Summary AI 解题提示
// @Tags AI 辅导
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body HintsRequest true "题目与当前代码"
// @Success 200 {object} util.Response{data=service.CodeHints}
// @Router /code/hints [post]
func (c *CodeController) Hints(ctx *gin.Context) {
	var req HintsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	hints, err := c.Tutor.Hints(ctx.Request.Context(), req.Question, req.Code)
	if err != nil {
		util.HandleProviderError(ctx, err)
		return
	}
	util.Success(ctx, hints)
}

// @Summary AI 代码讲解
// @Tags AI 辅导
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body ExplainRequest true "代码"
// @Success 200 {object} util.Response{data=service.CodeExplanation}
// @Router /code/explain [post]
func (c *CodeController) Explain(ctx *gin.Context) {
	var req ExplainRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	explanation, err := c.Tutor.Explain(ctx.Request.Context(), req.Code, req.Language)
	if err != nil {
		util.HandleProviderError(ctx, err)
		return
	}
	util.Success(ctx, explanation)
}
