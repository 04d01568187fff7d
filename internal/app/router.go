// internal/app/router.go
package app

import (
	authHandler "maproom-service/internal/handlers/auth"
	exportHandler "maproom-service/internal/handlers/export"
	liveHandler "maproom-service/internal/handlers/livesession"
	membershipHandler "maproom-service/internal/handlers/membership"
	notifyHandler "maproom-service/internal/handlers/notification"
	orgHandler "maproom-service/internal/handlers/organization"
	planHandler "maproom-service/internal/handlers/plans"
	quotaHandler "maproom-service/internal/handlers/quota"
	wsHandler "maproom-service/internal/handlers/websocket"
	"maproom-service/internal/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handlers struct {
	AuthHandler        *authHandler.AuthHandler
	PlanHandler        *planHandler.PlanHandler
	QuotaHandler       *quotaHandler.QuotaHandler
	MembershipHandler  *membershipHandler.MembershipHandler
	OrgHandler         *orgHandler.OrganizationHandler
	ExportHandler      *exportHandler.ExportHandler
	NotifHandler       *notifyHandler.NotificationHandler
	LiveSessionHandler *liveHandler.LiveSessionHandler
	WSHandler          *wsHandler.WebSocketHandler
	AuthMiddleware     *middleware.AuthMiddleware
}

func SetupRouter(r *gin.Engine, logger *zap.Logger, h *Handlers) {
	api := r.Group("/api/v1")

	// ==================== Health Check ====================
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "version": "1.0.0"})
	})

	// ==================== WebSocket ====================
	r.GET("/ws", h.WSHandler.HandleConnection)

	// ==================== Public Auth Routes ====================
	authPublic := api.Group("/auth")
	{
		authPublic.POST("/register", h.AuthHandler.Register)
		authPublic.POST("/login", h.AuthHandler.Login)
		authPublic.POST("/refresh", h.AuthHandler.Refresh)
	}

	// ==================== Authenticated Auth Routes ====================
	authProtected := api.Group("/auth")
	authProtected.Use(h.AuthMiddleware.Auth())
	{
		authProtected.POST("/logout", h.AuthHandler.Logout)
		authProtected.POST("/logout-all", h.AuthHandler.LogoutEverywhere)
		authProtected.PUT("/change-password", h.AuthHandler.ChangePassword)
		authProtected.GET("/me", h.AuthHandler.GetProfile)
	}

	// ==================== Plans ====================
	plans := api.Group("/plans")
	{
		// Public endpoints - no auth required
		plans.GET("/public", h.PlanHandler.ListPublicPlans)

		// Authenticated endpoints
		plansAuth := plans.Group("")
		plansAuth.Use(h.AuthMiddleware.Auth())
		{
			plansAuth.GET("/:id", h.PlanHandler.GetPlan)
			plansAuth.GET("/code/:code", h.PlanHandler.GetPlanByCode)
		}
	}

	// ==================== Memberships ====================
	memberships := api.Group("/memberships")
	memberships.Use(h.AuthMiddleware.Auth())
	{
		memberships.POST("", h.MembershipHandler.PurchaseMembership)
		memberships.POST("/renew", h.MembershipHandler.RenewMembership)
		memberships.GET("", h.MembershipHandler.ListMemberships)
		memberships.GET("/active", h.MembershipHandler.GetActiveMembership) // ?organization_id=1
		memberships.GET("/:id", h.MembershipHandler.GetMembership)
		memberships.POST("/:id/cancel", h.MembershipHandler.CancelMembership)

		// Addons
		memberships.POST("/addons", h.MembershipHandler.PurchaseAddon)
		memberships.GET("/:id/addons", h.MembershipHandler.ListActiveAddons)
	}

	// ==================== Quota ====================
	quota := api.Group("/quota")
	quota.Use(h.AuthMiddleware.Auth())
	{
		quota.GET("/check", h.QuotaHandler.CheckQuota)   // ?organization_id=1&resource_type=export&amount=1
		quota.POST("/consume", h.QuotaHandler.ConsumeQuota)
		quota.GET("/features/:flag", h.QuotaHandler.HasFeature) // ?organization_id=1
		quota.GET("/usage", h.QuotaHandler.GetUsage)            // ?organization_id=1
	}

	// ==================== Organizations ====================
	orgs := api.Group("/organizations")
	orgs.Use(h.AuthMiddleware.Auth())
	{
		orgs.POST("", h.OrgHandler.CreateOrganization)
		orgs.GET("/:id", h.OrgHandler.GetOrganization)

		// Admin dashboards (org admin or platform admin)
		orgs.GET("/:id/usage", h.OrgHandler.GetUsage)
		orgs.GET("/:id/subscription", h.OrgHandler.GetSubscription)
		orgs.GET("/:id/billing", h.OrgHandler.GetBilling)

		// Member management
		orgs.GET("/:id/members", h.OrgHandler.ListMembers)
		orgs.POST("/:id/members", h.OrgHandler.AddMember)
		orgs.PUT("/:id/members/:user_id", h.OrgHandler.UpdateMemberRole)
		orgs.DELETE("/:id/members/:user_id", h.OrgHandler.RemoveMember)
	}

	// ==================== Exports ====================
	exports := api.Group("/exports")
	exports.Use(h.AuthMiddleware.Auth())
	{
		exports.POST("", h.ExportHandler.CreateExport)
		exports.GET("", h.ExportHandler.ListExports) // ?organization_id=1
		exports.GET("/:id", h.ExportHandler.GetExport)

		// Approval workflow (org admin)
		exports.PUT("/:id/approve", h.ExportHandler.ApproveExport)
		exports.PUT("/:id/reject", h.ExportHandler.RejectExport)
	}

	// ==================== Notifications ====================
	notifications := api.Group("/notifications")
	notifications.Use(h.AuthMiddleware.Auth())
	{
		notifications.GET("", h.NotifHandler.ListNotifications)
		notifications.PUT("/:id/read", h.NotifHandler.MarkAsRead)
		notifications.PUT("/read-all", h.NotifHandler.MarkAllAsRead)
	}

	// ==================== Live Sessions ====================
	live := api.Group("/live-sessions")
	live.Use(h.AuthMiddleware.Auth())
	{
		live.POST("", h.LiveSessionHandler.CreateSession)
		live.GET("/:code", h.LiveSessionHandler.GetSession)
		live.POST("/:code/join", h.LiveSessionHandler.JoinSession)
		live.POST("/:code/leave", h.LiveSessionHandler.LeaveSession)
		live.POST("/:code/vote", h.LiveSessionHandler.Vote)
		live.PUT("/:code/payload", h.LiveSessionHandler.UpdatePayload)
		live.POST("/:code/close", h.LiveSessionHandler.CloseSession)
	}

	// ==================== ADMIN ROUTES ====================
	admin := api.Group("/admin")
	admin.Use(h.AuthMiddleware.PlatformAdminOnly()...)
	{
		// Plan catalog management
		adminPlans := admin.Group("/plans")
		{
			adminPlans.GET("", h.PlanHandler.ListPlans)
			adminPlans.POST("", h.PlanHandler.CreatePlan)
			adminPlans.PUT("/:id", h.PlanHandler.UpdatePlan)
			adminPlans.PUT("/:id/activate", h.PlanHandler.ActivatePlan)
			adminPlans.PUT("/:id/deactivate", h.PlanHandler.DeactivatePlan)
			adminPlans.DELETE("/:id", h.PlanHandler.DeletePlan)
		}

		// Membership management
		adminMemberships := admin.Group("/memberships")
		{
			adminMemberships.PUT("/:id/suspend", h.MembershipHandler.SuspendMembership)
			adminMemberships.PUT("/:id/reactivate", h.MembershipHandler.ReactivateMembership)
			adminMemberships.PUT("/:id/payment-failed", h.MembershipHandler.MarkPaymentFailed)
		}

		// Export workers report results here
		adminExports := admin.Group("/exports")
		{
			adminExports.PUT("/:id/complete", h.ExportHandler.CompleteExport)
			adminExports.PUT("/:id/fail", h.ExportHandler.FailExport)
		}

		admin.GET("/ws/stats", h.WSHandler.GetStats)
	}
}
