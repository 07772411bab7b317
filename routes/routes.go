package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"onechurch/config"
	"onechurch/handlers"
	"onechurch/middleware"
	"onechurch/websocket"
)

// Options wires the router. Hub and Limiter are optional.
type Options struct {
	Config  *config.Config
	Handler *handlers.Handler
	Auth    *middleware.Authenticator
	Hub     *websocket.Hub
	Limiter *middleware.IPRateLimiter
}

func SetupRouter(o Options) *gin.Engine {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     o.Config.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(middleware.ErrorHandler(o.Config.IsProduction()))

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "OneChurch Backend Running 🚀",
			"service": "healthy",
			"ws":      "WebSocket available at /ws",
		})
	})
	router.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	if o.Hub != nil {
		router.GET("/ws", o.Hub.Handler(o.Auth))
	}

	limiter := o.Limiter
	if limiter == nil {
		limiter = middleware.NewIPRateLimiter(20, time.Minute)
	}
	credentials := limiter.Middleware()

	h := o.Handler
	auth := o.Auth.RequireAuth()
	optional := o.Auth.OptionalAuth()

	api := router.Group("/api/v1")

	users := api.Group("/users")
	users.POST("/register", credentials, h.RegisterUser)
	users.POST("/login", credentials, h.LoginUser)
	users.POST("/logout", h.LogoutUser)
	users.GET("/me", auth, h.CurrentUser)
	users.GET("/:id/profile", optional, h.GetProfile)
	users.PUT("/profile", auth, h.UpdateProfile)
	users.PUT("/profile-picture", auth, h.UpdateProfilePicture)
	users.PUT("/banner-picture", auth, h.UpdateBannerPicture)
	users.POST("/:id/follow", auth, h.Follow)
	users.DELETE("/:id/follow", auth, h.Unfollow)
	users.GET("/:id/followers", h.ListFollowers)
	users.GET("/:id/following", h.ListFollowing)
	users.POST("/amen", auth, h.Amen)

	ministers := api.Group("/ministers")
	ministers.POST("/register", credentials, h.RegisterMinister)
	ministers.POST("/login", credentials, h.LoginMinister)
	ministers.POST("/logout", optional, h.LogoutMinister)
	ministers.POST("/refresh-token", credentials, h.RefreshToken)
	ministers.GET("/all", h.ListMinisters)
	ministers.GET("/recommended", h.RecommendedMinisters)
	ministers.GET("/profile/me", auth, middleware.MinisterOnly(), h.MyMinisterProfile)
	ministers.GET("/profile/:id", h.GetMinister)
	ministers.PUT("/profile", auth, middleware.MinisterOnly(), h.UpdateProfile)
	ministers.PUT("/profile-picture", auth, middleware.MinisterOnly(), h.UpdateProfilePicture)
	ministers.POST("/amen", auth, middleware.MinisterOnly(), h.Amen)

	posts := api.Group("/posts")
	posts.POST("", auth, h.CreatePost)
	posts.GET("", optional, h.ListPosts)
	posts.GET("/saved", auth, h.ListSavedPosts)
	posts.POST("/:id/like", auth, h.LikePost)
	posts.POST("/:id/save", auth, h.SavePost)
	posts.DELETE("/:id/save", auth, h.UnsavePost)
	posts.POST("/:id/report", auth, h.ReportPost)
	posts.PUT("/:id", auth, h.UpdatePost)
	posts.DELETE("/:id", auth, h.DeletePost)

	tweets := api.Group("/tweets")
	tweets.POST("", auth, h.CreateTweet)
	tweets.GET("", optional, h.ListTweets)
	tweets.GET("/trending", h.TrendingTags)
	tweets.PUT("/:id", auth, h.UpdateTweet)
	tweets.DELETE("/:id", auth, h.DeleteTweet)
	tweets.POST("/:id/like", auth, h.LikeTweet)
	tweets.POST("/:id/comment", auth, h.CommentOnTweet)
	tweets.DELETE("/:id/comment/:commentId", auth, h.DeleteTweetComment)
	tweets.POST("/:id/retweet", auth, h.Retweet)
	tweets.POST("/:id/share", auth, h.ShareTweet)

	comments := api.Group("/comments")
	comments.POST("", auth, h.CreateComment)
	comments.GET("/:id/replies", optional, h.ListReplies)
	comments.GET("/:id/:contentId", optional, h.ListComments)
	comments.POST("/:id/like", auth, h.LikeComment)
	comments.DELETE("/:id", auth, h.DeleteComment)

	stories := api.Group("/stories")
	stories.POST("", auth, middleware.MinisterOnly(), h.CreateStory)
	stories.GET("", optional, h.ListStories)
	stories.GET("/:id", optional, h.GetStory)
	stories.POST("/:id/view", auth, h.ViewStory)
	stories.POST("/:id/react", auth, h.ReactToStory)
	stories.DELETE("/:id", auth, h.DeleteStory)

	api.GET("/explore", optional, h.Explore)
	api.GET("/search", h.Search)

	pushGroup := api.Group("/push")
	pushGroup.GET("/vapid-public-key", h.VAPIDPublicKey)
	pushGroup.POST("/subscribe", auth, h.Subscribe)

	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"message": "Endpoint not found",
				"path":    c.Request.URL.Path,
			})
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Not found"})
	})

	return router
}
