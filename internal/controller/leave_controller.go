package controller

import (
	"leave_assessment_backend/internal/service"
	"leave_assessment_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type LeaveController struct {
	Service *service.LeaveService
}

func NewLeaveController(svc *service.LeaveService) *LeaveController {
	return &LeaveController{Service: svc}
}

// @Summary 学生提交请假申请
// @Tags 请假
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.CreateLeaveRequest true "请假信息"
// @Success 201 {object} util.Response{data=model.LeaveRequest}
// @Failure 400 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /leave [post]
func (c *LeaveController) Create(ctx *gin.Context) {
	requester, ok := util.Requester(ctx)
	if !ok {
		util.Unauthorized(ctx)
		return
	}

	var req service.CreateLeaveRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	leave, err := c.Service.Create(ctx.Request.Context(), requester, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, leave)
}

// @Summary 学生查看自己的请假记录
// @Tags 请假
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码"
// @Param limit query int false "每页数量"
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /leave/my-leaves [get]
func (c *LeaveController) ListMine(ctx *gin.Context) {
	requester, ok := util.Requester(ctx)
	if !ok {
		util.Unauthorized(ctx)
		return
	}
	page, limit := util.Pagination(ctx)

	leaves, total, err := c.Service.ListMine(ctx.Request.Context(), requester.UserID, page, limit)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: leaves, Total: total})
}

// @Summary 学生请假统计
// @Tags 请假
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=model.LeaveStats}
// @Router /leave/stats [get]
func (c *LeaveController) Stats(ctx *gin.Context) {
	requester, ok := util.Requester(ctx)
	if !ok {
		util.Unauthorized(ctx)
		return
	}
	stats, err := c.Service.Stats(ctx.Request.Context(), requester.UserID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, stats)
}

// @Summary 查看请假详情
// @Tags 请假
// @Produce json
// @Security BearerAuth
// @Param id path string true "请假ID"
// @Success 200 {object} util.Response{data=model.LeaveRequest}
// @Failure 403 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /leave/{id} [get]
func (c *LeaveController) Get(ctx *gin.Context) {
	requester, ok := util.Requester(ctx)
	if !ok {
		util.Unauthorized(ctx)
		return
	}
	leave, err := c.Service.Get(ctx.Request.Context(), ctx.Param("id"), requester)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, leave)
}

// @Summary 撤销待审批的请假
// @Tags 请假
// @Produce json
// @Security BearerAuth
// @Param id path string true "请假ID"
// @Success 200 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /leave/{id} [delete]
func (c *LeaveController) Delete(ctx *gin.Context) {
	requester, ok := util.Requester(ctx)
	if !ok {
		util.Unauthorized(ctx)
		return
	}
	if err := c.Service.Delete(ctx.Request.Context(), ctx.Param("id"), requester); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.SuccessWithMessage(ctx, "Leave request deleted successfully", nil)
}

// @Summary 教师查看全部请假
// @Tags 请假-教师
// @Produce json
// @Security BearerAuth
// @Param status query string false "pending | approved | rejected"
// @Param page query int false "页码"
// @Param limit query int false "每页数量"
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /leave [get]
func (c *LeaveController) ListAll(ctx *gin.Context) {
	page, limit := util.Pagination(ctx)
	leaves, total, err := c.Service.ListAll(ctx.Request.Context(), ctx.Query("status"), page, limit)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: leaves, Total: total})
}

// @Summary 教师审批请假
// @Tags 请假-教师
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "请假ID"
// @Param body body service.UpdateStatusRequest true "审批结果"
// @Success 200 {object} util.Response{data=model.LeaveRequest}
// @Failure 409 {object} util.Response
// @Router /leave/{id}/status [put]
func (c *LeaveController) UpdateStatus(ctx *gin.Context) {
	reviewer, ok := util.Requester(ctx)
	if !ok {
		util.Unauthorized(ctx)
		return
	}

	var req service.UpdateStatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	leave, err := c.Service.UpdateStatus(ctx.Request.Context(), ctx.Param("id"), reviewer, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.SuccessWithMessage(ctx, "Leave request "+string(leave.Status)+" successfully", leave)
}
