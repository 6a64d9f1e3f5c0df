package handlers

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/models"
)

func TestBuildCategoryTree_NestsChildrenUnderParents(t *testing.T) {
	clothing := models.Category{ID: primitive.NewObjectID(), Name: "Clothing"}
	shoes := models.Category{ID: primitive.NewObjectID(), Name: "Shoes"}
	shirts := models.Category{ID: primitive.NewObjectID(), Name: "Shirts", ParentCategory: &clothing.ID}
	jeans := models.Category{ID: primitive.NewObjectID(), Name: "Jeans", ParentCategory: &clothing.ID}

	tree := buildCategoryTree([]models.Category{shirts, shoes, jeans, clothing})

	if len(tree) != 2 {
		t.Fatalf("expected 2 roots, got %d", len(tree))
	}
	if tree[0].Name != "Clothing" || tree[1].Name != "Shoes" {
		t.Fatalf("unexpected root order %s, %s", tree[0].Name, tree[1].Name)
	}
	kids := tree[0].Children
	if len(kids) != 2 || kids[0].Name != "Jeans" || kids[1].Name != "Shirts" {
		t.Fatalf("unexpected children %+v", kids)
	}
	if len(tree[1].Children) != 0 {
		t.Fatalf("expected Shoes to have no children")
	}
}

func TestBuildCategoryTree_OrphansBecomeRoots(t *testing.T) {
	missing := primitive.NewObjectID()
	orphan := models.Category{ID: primitive.NewObjectID(), Name: "Orphan", ParentCategory: &missing}

	tree := buildCategoryTree([]models.Category{orphan})

	if len(tree) != 1 || tree[0].Name != "Orphan" {
		t.Fatalf("expected orphan as a root, got %+v", tree)
	}
}

func TestBuildCategoryTree_SelfParentIsRoot(t *testing.T) {
	id := primitive.NewObjectID()
	self := models.Category{ID: id, Name: "Loop", ParentCategory: &id}

	tree := buildCategoryTree([]models.Category{self})

	if len(tree) != 1 {
		t.Fatalf("expected self-parented category to be a root, got %d roots", len(tree))
	}
}
