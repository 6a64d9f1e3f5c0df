package handlers

import (
	"errors"
	"fmt"
	"log"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/models"
	"storefront/internal/response"
	"storefront/internal/storage"
)

const (
	maxImagesPerRequest = 5
	maxMultipartMemory  = 32 << 20
)

// parseImageFiles reads the "images" parts and validates each before any
// upload starts.
func parseImageFiles(c *gin.Context) ([]*multipart.FileHeader, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, fmt.Errorf("invalid multipart form: %w", err)
	}

	files := form.File["images"]
	if len(files) == 0 {
		return nil, errors.New("at least one image is required")
	}
	if len(files) > maxImagesPerRequest {
		return nil, fmt.Errorf("at most %d images per upload", maxImagesPerRequest)
	}

	for _, file := range files {
		if _, err := storage.ValidateImage(file.Filename, file.Size); err != nil {
			return nil, err
		}
	}
	return files, nil
}

func uploadImage(c *gin.Context, images ImageStore, file *multipart.FileHeader) (storage.Image, error) {
	in, err := file.Open()
	if err != nil {
		return storage.Image{}, err
	}
	defer in.Close()

	ctx, cancel := requestContext(c)
	defer cancel()
	return images.Upload(ctx, file.Filename, file.Size, in)
}

func UploadProductImages(db *mongo.Database, images ImageStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /products/:id/images"

		id, ok := pathObjectID(c, route, "id")
		if !ok {
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxMultipartMemory)

		files, err := parseImageFiles(c)
		if err != nil {
			response.Fail(c, route, response.BadRequest(err.Error()))
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		existing, err := decodeProduct(db.Collection("products").FindOne(ctx, bson.M{"_id": id}))
		if errors.Is(err, mongo.ErrNoDocuments) {
			response.Fail(c, route, response.NotFound("product not found"))
			return
		}
		if err != nil {
			response.Fail(c, route, err)
			return
		}

		uploaded := make([]models.ProductImage, 0, len(files))
		for _, file := range files {
			img, err := uploadImage(c, images, file)
			if err != nil {
				for _, done := range uploaded {
					if delErr := images.Delete(ctx, done.Key); delErr != nil {
						log.Printf("[%s] rollback delete failed key=%s: %v", route, done.Key, delErr)
					}
				}
				response.Fail(c, route, err)
				return
			}
			uploaded = append(uploaded, models.ProductImage{URL: img.URL, Key: img.Key})
		}

		set := bson.M{"updatedAt": time.Now()}
		if strings.TrimSpace(existing.Thumbnail) == "" || len(existing.Images) == 0 {
			set["thumbnail"] = uploaded[0].URL
		}

		updated, err := decodeProduct(db.Collection("products").FindOneAndUpdate(ctx,
			bson.M{"_id": id},
			bson.M{"$push": bson.M{"images": bson.M{"$each": uploaded}}, "$set": set},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		))
		if err != nil {
			response.Fail(c, route, err)
			return
		}

		log.Printf("[%s] product %s uploaded=%d", route, id.Hex(), len(uploaded))
		response.OK(c, "images uploaded", updated)
	}
}

type deleteImageRequest struct {
	Key string `json:"key" binding:"required"`
}

func DeleteProductImage(db *mongo.Database, images ImageStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /products/:id/images"

		id, ok := pathObjectID(c, route, "id")
		if !ok {
			return
		}
		var req deleteImageRequest
		if !bindJSON(c, route, &req) {
			return
		}
		key, err := storage.CleanKey(req.Key)
		if err != nil {
			response.Fail(c, route, response.BadRequest(err.Error()))
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		existing, err := decodeProduct(db.Collection("products").FindOne(ctx, bson.M{"_id": id, "images.key": key}))
		if errors.Is(err, mongo.ErrNoDocuments) {
			response.Fail(c, route, response.NotFound("image not found"))
			return
		}
		if err != nil {
			response.Fail(c, route, err)
			return
		}

		remaining := make([]models.ProductImage, 0, len(existing.Images))
		var removedURL string
		for _, img := range existing.Images {
			if img.Key == key {
				removedURL = img.URL
				continue
			}
			remaining = append(remaining, img)
		}

		set := bson.M{"updatedAt": time.Now()}
		update := bson.M{"$pull": bson.M{"images": bson.M{"key": key}}, "$set": set}
		if existing.Thumbnail == removedURL {
			if len(remaining) > 0 {
				set["thumbnail"] = remaining[0].URL
			} else {
				update["$unset"] = bson.M{"thumbnail": ""}
			}
		}

		updated, err := decodeProduct(db.Collection("products").FindOneAndUpdate(ctx,
			bson.M{"_id": id}, update,
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		))
		if err != nil {
			response.Fail(c, route, err)
			return
		}

		if err := images.Delete(ctx, key); err != nil {
			log.Printf("[%s] storage delete failed key=%s: %v", route, key, err)
		}
		response.OK(c, "image removed", updated)
	}
}
