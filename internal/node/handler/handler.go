// Package handler serves the blocklog node API over HTTP using Gin.
package handler
