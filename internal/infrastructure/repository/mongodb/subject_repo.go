package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mikiasgoitom/articulate-engage/internal/domain/apperrors"
	"github.com/mikiasgoitom/articulate-engage/internal/domain/contract"
	"github.com/mikiasgoitom/articulate-engage/internal/domain/entity"
)

// subjectDocument is the projection of a post or comment holding its counters.
type subjectDocument struct {
	ID             string `bson:"_id"`
	entity.Metrics `bson:",inline"`
}

// engagementDocument is one viewer flag row.
type engagementDocument struct {
	SubjectID string            `bson:"subject_id"`
	UserID    string            `bson:"user_id"`
	Action    entity.ActionType `bson:"action"`
	Active    bool              `bson:"active"`
}

// SubjectRepository reads subject engagement state straight from the post/comment store.
type SubjectRepository struct {
	posts       *mongo.Collection
	comments    *mongo.Collection
	engagements *mongo.Collection
	viewerID    string
}

// NewSubjectRepository creates a SubjectRepository reporting flags for viewerID.
func NewSubjectRepository(db *mongo.Database, viewerID string) *SubjectRepository {
	return &SubjectRepository{
		posts:       db.Collection("posts"),
		comments:    db.Collection("comments"),
		engagements: db.Collection("engagements"),
		viewerID:    viewerID,
	}
}

// FetchSubject looks the id up in posts, then comments, and joins the viewer's active flags.
func (r *SubjectRepository) FetchSubject(ctx context.Context, subjectID string) (*entity.SubjectSnapshot, error) {
	doc, err := r.findCounts(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	snap := &entity.SubjectSnapshot{SubjectID: subjectID, Metrics: doc.Metrics}
	if r.viewerID == "" {
		// without a viewer the store says nothing about flags
		snap.UnreportedFlags = entity.AllActions
		return snap, nil
	}

	filter := bson.M{"subject_id": subjectID, "user_id": r.viewerID, "active": true}
	cursor, err := r.engagements.Find(ctx, filter, options.Find().SetProjection(bson.M{"action": 1, "active": 1}))
	if err != nil {
		return nil, fmt.Errorf("failed to query engagement flags: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []engagementDocument
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode engagement flags: %w", err)
	}
	for _, row := range rows {
		if row.Action.IsValid() {
			snap.InteractionState.SetActive(row.Action, row.Active)
		}
	}
	return snap, nil
}

func (r *SubjectRepository) findCounts(ctx context.Context, subjectID string) (*subjectDocument, error) {
	filter := bson.M{"_id": subjectID, "is_deleted": bson.M{"$ne": true}}
	for _, coll := range []*mongo.Collection{r.posts, r.comments} {
		var doc subjectDocument
		err := coll.FindOne(ctx, filter).Decode(&doc)
		if err == nil {
			return &doc, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("failed to retrieve subject from %s: %w", coll.Name(), err)
		}
	}
	return nil, fmt.Errorf("%s: %w", subjectID, apperrors.ErrSubjectNotFound)
}

var _ contract.ISubjectSource = (*SubjectRepository)(nil)
