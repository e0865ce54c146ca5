package research

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	TagInferred  = "inferred"
	TagMetadata  = "metadata"
	TagNeedsEdit = "needs edit"
)

type NotionPage struct {
	ID   string
	Name string
	URL  string
}

func NewNotionPage(page *notionapi.Page) *NotionPage {
	res := &NotionPage{}
	res.ID = string(page.ID)

	if nameProp, ok := page.Properties["Name"].(*notionapi.PageTitleProperty); ok {
		if len(nameProp.Title) > 0 {
			res.Name = nameProp.Title[0].PlainText
		}
	}
	if urlProp, ok := page.Properties["URL"].(*notionapi.URLProperty); ok {
		if u, ok := urlProp.URL.(string); ok {
			res.URL = u
		}
	}
	return res
}

// reportTags marks where a title came from. Metadata titles are often the
// LaTeX source name, so they are flagged for a manual look.
func reportTags(fr *FileReport) []string {
	if fr.Source == SourceMetadata {
		return []string{TagMetadata, TagNeedsEdit}
	}
	return []string{TagInferred}
}

type NotionHandler struct {
	databaseID notionapi.DatabaseID
	nc         *notionapi.Client
}

func NewNotionHandler(token string, databaseID string) *NotionHandler {
	return &NotionHandler{
		nc:         notionapi.NewClient(notionapi.Token(token)),
		databaseID: notionapi.DatabaseID(databaseID),
	}
}

func (nh *NotionHandler) getProperties(fr *FileReport) notionapi.Properties {
	return notionapi.Properties{
		"Name": notionapi.PageTitleProperty{
			Title: notionapi.Paragraph{
				notionapi.RichText{
					Text: notionapi.Text{
						Content: fr.Title,
					},
				},
			},
		},
		"Tags": notionapi.MultiSelectOptionsProperty{
			Type: "multi_select",
			MultiSelect: func() []notionapi.Option {
				var res []notionapi.Option
				for _, tag := range reportTags(fr) {
					res = append(res, notionapi.Option{Name: tag})
				}
				return res
			}(),
		},
		"URL": notionapi.URLProperty{
			Type: "url",
			URL:  fr.URL,
		},
	}
}

func (nh *NotionHandler) CreatePage(ctx context.Context, fr *FileReport) (*NotionPage, error) {
	req := &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			DatabaseID: nh.databaseID,
		},
		Properties: nh.getProperties(fr),
	}
	page, err := nh.nc.Page.Create(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "notion handler CreatePage failed")
	}
	return NewNotionPage(page), nil
}

// UpdatePage refreshes the title and the link of an existing page. Tags
// are left alone since they may have been edited by hand.
func (nh *NotionHandler) UpdatePage(ctx context.Context, fr *FileReport, pageID string) (*NotionPage, error) {
	req := &notionapi.PageUpdateRequest{
		Properties: nh.getProperties(fr),
	}
	delete(req.Properties, "Tags")

	page, err := nh.nc.Page.Update(ctx, notionapi.PageID(pageID), req)
	if err != nil {
		return nil, errors.Wrap(err, "notion handler UpdatePage failed")
	}
	return NewNotionPage(page), nil
}

// NotionPages is the part of NotionHandler used by NotionReporter.
type NotionPages interface {
	CreatePage(ctx context.Context, fr *FileReport) (*NotionPage, error)
	UpdatePage(ctx context.Context, fr *FileReport, pageID string) (*NotionPage, error)
}

// NotionReporter records every titled paper as a page of a Notion
// database. The page id of each file content is kept in the store so a
// file seen again updates its page.
type NotionReporter struct {
	nh    NotionPages
	store Store
	log   *logrus.Logger
}

func NewNotionReporter(nh NotionPages, store Store, log *logrus.Logger) *NotionReporter {
	return &NotionReporter{
		nh:    nh,
		store: store,
		log:   log,
	}
}

func (nr *NotionReporter) pageKey(fr *FileReport) string {
	return "notion-page-" + fr.Hash
}

func (nr *NotionReporter) Report(ctx context.Context, fr *FileReport) error {
	key := nr.pageKey(fr)
	storedPageID, ok, err := nr.store.Get(ctx, key)
	if err != nil {
		return errors.Wrap(err, "notion Report failed")
	}
	if ok {
		page, err := nr.nh.UpdatePage(ctx, fr, storedPageID)
		if err != nil {
			return errors.Wrap(err, "notion Report failed")
		}
		nr.log.WithFields(logrus.Fields{
			"File":   fr.Path,
			"Title":  fr.Title,
			"PageID": page.ID,
		}).Info("Notion page updated.")
		return nil
	}

	page, err := nr.nh.CreatePage(ctx, fr)
	if err != nil {
		return errors.Wrap(err, "notion Report failed")
	}
	if err := nr.store.Set(ctx, key, page.ID); err != nil {
		return errors.Wrap(err, "notion Report failed")
	}
	nr.log.WithFields(logrus.Fields{
		"File":   fr.Path,
		"Title":  fr.Title,
		"PageID": page.ID,
	}).Info("Notion page created.")
	return nil
}
