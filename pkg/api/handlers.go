package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/james-see/pianodaw/pkg/edit"
	"github.com/james-see/pianodaw/pkg/midifile"
	"github.com/james-see/pianodaw/pkg/model"
	"github.com/james-see/pianodaw/pkg/script"
	"github.com/james-see/pianodaw/pkg/session"
	"github.com/james-see/pianodaw/pkg/timing"
)

type projectResponse struct {
	Name          string  `json:"name"`
	Tempo         float64 `json:"tempo"`
	TimeSignature string  `json:"timeSignature"`
	Length        int64   `json:"length"`
	LoopStart     int64   `json:"loopStart"`
	LoopEnd       int64   `json:"loopEnd"`
	FilePath      string  `json:"filePath"`
	Modified      bool    `json:"modified"`
	Tracks        int     `json:"tracks"`
	Clips         int     `json:"clips"`
}

type regionResponse struct {
	ID         model.RegionID `json:"id"`
	Clip       string         `json:"clip"`
	StartTick  int64          `json:"startTick"`
	OffsetTick int64          `json:"offsetTick"`
	LengthTick int64          `json:"lengthTick"`
	Muted      bool           `json:"muted"`
}

type trackResponse struct {
	Number int `json:"number"`
	edit.TrackSettings
	Type    string           `json:"type"`
	Color   string           `json:"color"`
	Regions []regionResponse `json:"regions"`
}

type clipResponse struct {
	Number   int    `json:"number"`
	Handle   string `json:"handle"`
	Name     string `json:"name"`
	Notes    int    `json:"notes"`
	CCEvents int    `json:"ccEvents"`
	Duration int64  `json:"duration"`
}

type noteRequest struct {
	Pitch     int   `json:"pitch" binding:"min=0,max=127"`
	StartTick int64 `json:"startTick" binding:"min=0"`
	EndTick   int64 `json:"endTick"`
	Velocity  int   `json:"velocity"`
}

type moveRequest struct {
	DeltaTicks int64  `json:"deltaTicks"`
	DeltaPitch int    `json:"deltaPitch"`
	StartTick  *int64 `json:"startTick"`
	EndTick    *int64 `json:"endTick"`
}

type ccRequest struct {
	CC    int   `json:"cc" binding:"min=0,max=127"`
	Tick  int64 `json:"tick" binding:"min=0"`
	Value int   `json:"value" binding:"min=0,max=127"`
}

type quantizeRequest struct {
	Grid       string         `json:"grid"`
	Strength   *float64       `json:"strength"`
	Swing      *float64       `json:"swing"`
	SmartChord bool           `json:"smartChord"`
	SmartPedal bool           `json:"smartPedal"`
	IDs        []model.NoteID `json:"ids"`
}

type transformRequest struct {
	Op     string         `json:"op" binding:"required"`
	Amount float64        `json:"amount"`
	IDs    []model.NoteID `json:"ids"`
}

type tempoRequest struct {
	BPM float64 `json:"bpm" binding:"required,gt=0"`
}

type positionRequest struct {
	Tick int64 `json:"tick"`
}

type loopRequest struct {
	Start   int64 `json:"start"`
	End     int64 `json:"end"`
	Enabled *bool `json:"enabled"`
}

func fail(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}

// clip resolves the :clip parameter, answering 404 when it names no clip.
func (s *Server) clip(c *gin.Context) (*model.Clip, bool) {
	n, err := strconv.Atoi(c.Param("clip"))
	if err != nil {
		fail(c, http.StatusBadRequest, fmt.Errorf("invalid clip number %q", c.Param("clip")))
		return nil, false
	}
	_, clip, err := s.session.ClipByNumber(n)
	if err != nil {
		fail(c, http.StatusNotFound, err)
		return nil, false
	}
	return clip, true
}

// note resolves :clip and :id together.
func (s *Server) note(c *gin.Context) (*model.Clip, model.NoteID, bool) {
	clip, ok := s.clip(c)
	if !ok {
		return nil, 0, false
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, fmt.Errorf("invalid note id %q", c.Param("id")))
		return nil, 0, false
	}
	if _, found := clip.Note(model.NoteID(id)); !found {
		fail(c, http.StatusNotFound, fmt.Errorf("note %d not found", id))
		return nil, 0, false
	}
	return clip, model.NoteID(id), true
}

// selection returns ids, or every note of clip when ids is empty.
func selection(clip *model.Clip, ids []model.NoteID) []model.NoteID {
	if len(ids) > 0 {
		return ids
	}
	return session.NoteIDs(clip)
}

// getProject godoc
// @Summary Project summary
// @Tags project
// @Produce json
// @Success 200 {object} projectResponse
// @Router /api/v1/project [get]
func (s *Server) getProject(c *gin.Context) {
	info := s.session.Project().Info()
	c.JSON(http.StatusOK, projectResponse{
		Name:          info.Name,
		Tempo:         info.Tempo,
		TimeSignature: fmt.Sprintf("%d/%d", info.Numerator, info.Denominator),
		Length:        info.Length,
		LoopStart:     info.LoopStart,
		LoopEnd:       info.LoopEnd,
		FilePath:      info.FilePath,
		Modified:      info.Modified,
		Tracks:        info.NumTracks,
		Clips:         info.NumClips,
	})
}

// saveProject godoc
// @Summary Save the project
// @Description Saves to the given path, or to the path it was opened from
// @Tags project
// @Accept json
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Router /api/v1/project/save [post]
func (s *Server) saveProject(c *gin.Context) {
	var req struct {
		Path string `json:"path"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, err)
			return
		}
	}
	var err error
	if req.Path != "" {
		err = s.session.SaveAs(req.Path)
	} else {
		err = s.session.Save()
	}
	switch {
	case errors.Is(err, session.ErrNoFilePath):
		fail(c, http.StatusBadRequest, err)
	case err != nil:
		fail(c, http.StatusInternalServerError, err)
	default:
		c.JSON(http.StatusOK, gin.H{"path": s.session.Project().FilePath()})
	}
}

// listTracks godoc
// @Summary List tracks with their clip regions
// @Tags tracks
// @Produce json
// @Success 200 {object} map[string][]trackResponse
// @Router /api/v1/tracks [get]
func (s *Server) listTracks(c *gin.Context) {
	tracks := s.session.Project().Tracks()
	out := make([]trackResponse, 0, len(tracks))
	for i, t := range tracks {
		col := t.Color()
		tr := trackResponse{
			Number:        i + 1,
			TrackSettings: edit.SettingsOf(t),
			Type:          t.Type().String(),
			Color:         fmt.Sprintf("#%02x%02x%02x", col.R, col.G, col.B),
		}
		for _, r := range t.ClipRegions() {
			tr.Regions = append(tr.Regions, regionResponse{
				ID:         r.ID,
				Clip:       r.Clip.String(),
				StartTick:  r.StartTick,
				OffsetTick: r.OffsetTick,
				LengthTick: r.LengthTick,
				Muted:      r.Muted,
			})
		}
		out = append(out, tr)
	}
	c.JSON(http.StatusOK, gin.H{"tracks": out})
}

// updateTrack godoc
// @Summary Change a track's name, mute, solo, volume or pan
// @Tags tracks
// @Accept json
// @Produce json
// @Param track path int true "Track number, from 1"
// @Success 200 {object} edit.TrackSettings
// @Failure 404 {object} map[string]string
// @Router /api/v1/tracks/{track} [put]
func (s *Server) updateTrack(c *gin.Context) {
	n, _ := strconv.Atoi(c.Param("track"))
	t, err := s.session.TrackByNumber(n)
	if err != nil {
		fail(c, http.StatusNotFound, err)
		return
	}
	settings := edit.SettingsOf(t)
	if err := c.ShouldBindJSON(&settings); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	s.session.Do(edit.NewSetTrackSettings(t, settings))
	c.JSON(http.StatusOK, edit.SettingsOf(t))
}

// listClips godoc
// @Summary List the clip pool
// @Tags clips
// @Produce json
// @Success 200 {object} map[string][]clipResponse
// @Router /api/v1/clips [get]
func (s *Server) listClips(c *gin.Context) {
	p := s.session.Project()
	var out []clipResponse
	for i, h := range p.ClipHandles() {
		clip, ok := p.Clip(h)
		if !ok {
			continue
		}
		out = append(out, clipResponse{
			Number:   i + 1,
			Handle:   h.String(),
			Name:     clip.Name(),
			Notes:    clip.NumNotes(),
			CCEvents: len(clip.CCEvents()),
			Duration: clip.TotalDuration(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"clips": out})
}

// listNotes godoc
// @Summary Notes and controller events of a clip
// @Tags clips
// @Produce json
// @Param clip path int true "Clip number, from 1"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string
// @Router /api/v1/clips/{clip}/notes [get]
func (s *Server) listNotes(c *gin.Context) {
	clip, ok := s.clip(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"notes": clip.Notes(), "ccEvents": clip.CCEvents()})
}

// addNote godoc
// @Summary Add a note
// @Tags clips
// @Accept json
// @Produce json
// @Param clip path int true "Clip number, from 1"
// @Success 201 {object} map[string]int64
// @Failure 400 {object} map[string]string
// @Router /api/v1/clips/{clip}/notes [post]
func (s *Server) addNote(c *gin.Context) {
	clip, ok := s.clip(c)
	if !ok {
		return
	}
	req := noteRequest{Velocity: 100}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	cmd := edit.NewAddNote(clip, req.Pitch, req.StartTick, req.EndTick, req.Velocity)
	s.session.Do(cmd)
	n, _ := clip.Note(cmd.ID())
	c.JSON(http.StatusCreated, n)
}

// moveNote godoc
// @Summary Move or resize a note
// @Description deltaTicks/deltaPitch move the note; startTick/endTick set its span
// @Tags clips
// @Accept json
// @Produce json
// @Param clip path int true "Clip number, from 1"
// @Param id path int true "Note id"
// @Success 200 {object} model.Note
// @Failure 404 {object} map[string]string
// @Router /api/v1/clips/{clip}/notes/{id} [patch]
func (s *Server) moveNote(c *gin.Context) {
	clip, id, ok := s.note(c)
	if !ok {
		return
	}
	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	var cmds []edit.Command
	if req.StartTick != nil || req.EndTick != nil {
		n, _ := clip.Note(id)
		start, end := n.StartTick, n.EndTick
		if req.StartTick != nil {
			start = *req.StartTick
		}
		if req.EndTick != nil {
			end = *req.EndTick
		}
		cmds = append(cmds, edit.NewResizeNote(clip, id, start, end))
	}
	if req.DeltaTicks != 0 || req.DeltaPitch != 0 {
		cmds = append(cmds, edit.NewMoveNotes(clip, []model.NoteID{id}, req.DeltaTicks, req.DeltaPitch))
	}
	switch len(cmds) {
	case 0:
	case 1:
		s.session.Do(cmds[0])
	default:
		s.session.Do(edit.NewBatch("Edit Note", cmds...))
	}
	n, _ := clip.Note(id)
	c.JSON(http.StatusOK, n)
}

// deleteNote godoc
// @Summary Delete a note
// @Tags clips
// @Param clip path int true "Clip number, from 1"
// @Param id path int true "Note id"
// @Success 204
// @Failure 404 {object} map[string]string
// @Router /api/v1/clips/{clip}/notes/{id} [delete]
func (s *Server) deleteNote(c *gin.Context) {
	clip, id, ok := s.note(c)
	if !ok {
		return
	}
	s.session.Do(edit.NewRemoveNote(clip, id))
	c.Status(http.StatusNoContent)
}

// addCC godoc
// @Summary Add or replace a controller event
// @Tags clips
// @Accept json
// @Produce json
// @Param clip path int true "Clip number, from 1"
// @Success 201 {object} model.CCEvent
// @Failure 400 {object} map[string]string
// @Router /api/v1/clips/{clip}/cc [post]
func (s *Server) addCC(c *gin.Context) {
	clip, ok := s.clip(c)
	if !ok {
		return
	}
	var req ccRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	s.session.Do(edit.NewAddCCEvent(clip, req.CC, req.Tick, req.Value))
	c.JSON(http.StatusCreated, model.NewCCEvent(req.CC, req.Tick, req.Value))
}

// quantizeClip godoc
// @Summary Quantize notes
// @Description Quantizes the given note ids, or every note. Missing fields use the configured defaults.
// @Tags edit
// @Accept json
// @Produce json
// @Param clip path int true "Clip number, from 1"
// @Success 200 {object} map[string][]int64
// @Failure 400 {object} map[string]string
// @Router /api/v1/clips/{clip}/quantize [post]
func (s *Server) quantizeClip(c *gin.Context) {
	clip, ok := s.clip(c)
	if !ok {
		return
	}
	var req quantizeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, err)
			return
		}
	}
	p := s.session.QuantizeParams()
	if req.Grid != "" {
		g, err := timing.ParseGridSize(req.Grid)
		if err != nil {
			fail(c, http.StatusBadRequest, err)
			return
		}
		p.GridTicks = g.Ticks()
	}
	if req.Strength != nil {
		p.Strength = min(max(*req.Strength, 0), 1)
	}
	if req.Swing != nil {
		p.Swing = min(max(*req.Swing, 0), 1)
	}
	p.SmartChord = req.SmartChord
	p.SmartPedal = req.SmartPedal

	cmd := edit.NewQuantize(clip, selection(clip, req.IDs), p)
	s.session.Do(cmd)
	moved := cmd.Moved()
	if moved == nil {
		moved = []model.NoteID{}
	}
	c.JSON(http.StatusOK, gin.H{"moved": moved})
}

// transformClip godoc
// @Summary Apply a note transform
// @Description op is one of transpose, mirror-v, mirror-h, reverse, legato, overlap, scale, length, velocity, humanize
// @Tags edit
// @Accept json
// @Produce json
// @Param clip path int true "Clip number, from 1"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Router /api/v1/clips/{clip}/transform [post]
func (s *Server) transformClip(c *gin.Context) {
	clip, ok := s.clip(c)
	if !ok {
		return
	}
	var req transformRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	cmd, err := edit.NewTransform(req.Op, clip, selection(clip, req.IDs), req.Amount)
	if err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	s.session.Do(cmd)
	c.JSON(http.StatusOK, gin.H{"applied": cmd.Description()})
}

// runScript godoc
// @Summary Run a JSON edit request
// @Description Accepts smart_quantize, generate_progression and generate_melody requests, optionally wrapped in a ```json fence
// @Tags edit
// @Accept json
// @Produce json
// @Param clip path int true "Clip number, from 1"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Router /api/v1/clips/{clip}/script [post]
func (s *Server) runScript(c *gin.Context) {
	clip, ok := s.clip(c)
	if !ok {
		return
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	res, err := script.Interpret(clip, body)
	if err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	applied := ""
	if res.Command != nil {
		s.session.Do(res.Command)
		applied = res.Command.Description()
	}
	c.JSON(http.StatusOK, gin.H{
		"action":    res.Action,
		"reasoning": res.Reasoning,
		"applied":   applied,
	})
}

// exportClip godoc
// @Summary Download a clip as a MIDI file
// @Tags clips
// @Produce application/octet-stream
// @Param clip path int true "Clip number, from 1"
// @Param ppq query int false "File resolution (default from config)"
// @Success 200 {file} binary
// @Failure 404 {object} map[string]string
// @Router /api/v1/clips/{clip}/export [get]
func (s *Server) exportClip(c *gin.Context) {
	clip, ok := s.clip(c)
	if !ok {
		return
	}
	opts := s.session.ExportOptions()
	if q := c.Query("ppq"); q != "" {
		ppq, err := strconv.ParseUint(q, 10, 15)
		if err != nil || ppq == 0 {
			fail(c, http.StatusBadRequest, fmt.Errorf("invalid ppq %q", q))
			return
		}
		opts.PPQ = uint16(ppq)
	}
	var buf bytes.Buffer
	if err := midifile.Export(&buf, clip, opts); err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	name := clip.Name()
	if name == "" {
		name = "clip"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".mid"))
	c.Data(http.StatusOK, "audio/midi", buf.Bytes())
}

// getHistory godoc
// @Summary Undo and redo state
// @Tags history
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/history [get]
func (s *Server) getHistory(c *gin.Context) {
	h := s.session.History()
	c.JSON(http.StatusOK, gin.H{
		"canUndo": h.CanUndo(),
		"canRedo": h.CanRedo(),
		"undo":    h.UndoDescription(),
		"redo":    h.RedoDescription(),
		"history": h.History(),
	})
}

// undo godoc
// @Summary Undo the last edit
// @Tags history
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /api/v1/undo [post]
func (s *Server) undo(c *gin.Context) {
	desc := s.session.History().UndoDescription()
	if !s.session.Undo() {
		fail(c, http.StatusConflict, errors.New("nothing to undo"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"undone": desc})
}

// redo godoc
// @Summary Redo the last undone edit
// @Tags history
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /api/v1/redo [post]
func (s *Server) redo(c *gin.Context) {
	desc := s.session.History().RedoDescription()
	if !s.session.Redo() {
		fail(c, http.StatusConflict, errors.New("nothing to redo"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"redone": desc})
}

// getTransport godoc
// @Summary Transport state
// @Tags transport
// @Produce json
// @Success 200 {object} transport.State
// @Router /api/v1/transport [get]
func (s *Server) getTransport(c *gin.Context) {
	st := s.session.Transport().State()
	ts, _ := s.session.Project().TimeSignature()
	c.JSON(http.StatusOK, gin.H{
		"state":    st,
		"position": timing.TickToBarBeat(st.Tick, ts).String(),
	})
}

// play godoc
// @Summary Start playback
// @Tags transport
// @Success 200 {object} transport.State
// @Router /api/v1/transport/play [post]
func (s *Server) play(c *gin.Context) {
	s.session.Transport().Start()
	c.JSON(http.StatusOK, s.session.Transport().State())
}

// stop godoc
// @Summary Stop playback
// @Tags transport
// @Success 200 {object} transport.State
// @Router /api/v1/transport/stop [post]
func (s *Server) stop(c *gin.Context) {
	s.session.Transport().Stop()
	c.JSON(http.StatusOK, s.session.Transport().State())
}

// setTempo godoc
// @Summary Set the tempo
// @Description Changes project and transport tempo as one undoable edit
// @Tags transport
// @Accept json
// @Success 200 {object} transport.State
// @Failure 400 {object} map[string]string
// @Router /api/v1/transport/tempo [put]
func (s *Server) setTempo(c *gin.Context) {
	var req tempoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	s.session.SetTempo(req.BPM)
	c.JSON(http.StatusOK, s.session.Transport().State())
}

// setPosition godoc
// @Summary Move the playhead
// @Tags transport
// @Accept json
// @Success 200 {object} transport.State
// @Router /api/v1/transport/position [put]
func (s *Server) setPosition(c *gin.Context) {
	var req positionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	s.session.Transport().SetPosition(req.Tick)
	c.JSON(http.StatusOK, s.session.Transport().State())
}

// setLoop godoc
// @Summary Set the loop range
// @Tags transport
// @Accept json
// @Success 200 {object} transport.State
// @Failure 400 {object} map[string]string
// @Router /api/v1/transport/loop [put]
func (s *Server) setLoop(c *gin.Context) {
	var req loopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	tr := s.session.Transport()
	if err := tr.SetLoopRange(req.Start, req.End); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	s.session.Project().SetLoopRange(req.Start, req.End)
	if req.Enabled != nil {
		tr.SetLooping(*req.Enabled)
	}
	c.JSON(http.StatusOK, tr.State())
}
